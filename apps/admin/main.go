package main

import (
	"os"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/services/email"
	"github.com/edutrack/backend/services/events"
	"github.com/edutrack/backend/services/logger"
	"github.com/edutrack/backend/storage/database"
	"github.com/edutrack/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(conf), conf)

	cli := newCommandLine(conf, nil)

	// only DB-free commands can run before the schema exists
	if len(os.Args) < 2 || (os.Args[1] != "migrate" && os.Args[1] != "createdb") {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("admin", err)
		}
		defer func() { _ = db.Close() }()

		mailSvc := emailsvc.NewConsoleService(conf, logger)
		cli.usrSvc = user.NewService(
			sqlxrepos.NewTransactor(db),
			sqlxrepos.NewUserRepository(db),
			mailSvc,
			eventsvc.NewLogPublisher(logger),
			logger,
			conf,
		)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin", err)
		}
		os.Exit(1)
	}
}
