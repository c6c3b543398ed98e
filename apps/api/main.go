package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/edutrack/backend/apps/api/echo"
	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/services/email"
	"github.com/edutrack/backend/services/events"
	"github.com/edutrack/backend/services/logger"
	"github.com/edutrack/backend/storage/database"
	"github.com/edutrack/backend/storage/database/sqlx"
)

// TODO:
// - Profiling (Benchmarking) https://blog.golang.org/pprof
// - APM/Tracing
func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(conf), conf)

	if err := run(conf, logger); err != nil {
		logger.Fatal("api", err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// set up DB
	if err := database.MigrateApp(conf); err != nil {
		return err
	}
	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// set up services
	var events core.EventPublisher
	if conf.AMQP.URL != "" {
		pub, err := eventsvc.NewRabbitMQPublisher(conf)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		events = pub
	} else {
		events = eventsvc.NewLogPublisher(logger)
	}

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger)

	tx := sqlxrepos.NewTransactor(db)
	usrSvc := user.NewService(tx, sqlxrepos.NewUserRepository(db), mailSvc, events, logger, conf)

	// start API server
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			UserSvc:       usrSvc,
			HomeworkSvc:   homework.NewService(tx, sqlxrepos.NewHomeworkRepository(db), usrSvc, events, logger),
			AttendanceSvc: attendance.NewService(tx, sqlxrepos.NewAttendanceRepository(db), usrSvc, events, logger),
			FeeSvc:        fee.NewService(tx, sqlxrepos.NewFeeRepository(db), usrSvc, mailSvc, events, logger),
		},
		shutdown,
	)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("api listening on " + conf.Server.Address)
		serverErrors <- app.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil
	case sig := <-shutdown:
		logger.Info("shutdown started: " + sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
		logger.Info("shutdown complete")
	}
	return nil
}
