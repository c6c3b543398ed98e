package main

import (
	"context"

	"github.com/edutrack/backend/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := (user.NewPassword{Password: pwd}).Validate(cli.validate); err != nil {
		return cli.invalidInput(err)
	}
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return cli.usrSvc.ChangePassword(ctx, usr.Username, pwd)
}
