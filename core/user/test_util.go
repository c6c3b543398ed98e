package user

import (
	"context"

	"github.com/edutrack/backend/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends password reset mails synchronously.
func NewServiceMock(
	db core.Transactor,
	repo Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &serviceMock{
		service: service{db: db, repo: repo, mailSvc: mailSvc, events: events, logger: logger, conf: conf},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
