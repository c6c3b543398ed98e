package main

import (
	"fmt"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/storage/database"
)

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// mockable
var (
	newMigratorFunc = func(conf *core.Config) (migrator, error) { return database.NewMigrator(conf) }
	createDBFunc    = database.CreateIfNotExist
)

func (cli *commandLine) migrate(command string) error {
	m, err := newMigratorFunc(cli.conf)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version: %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("%q: no such command", command)
	}
}
