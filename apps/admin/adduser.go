package main

import (
	"context"
	"fmt"

	"github.com/edutrack/backend/core/user"
)

func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return cli.invalidInput(err)
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %q (id: %d)\n", usr.Role, usr.Username, usr.ID)
	return nil
}
