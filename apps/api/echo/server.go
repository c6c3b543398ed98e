package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        user.Service
		HomeworkSvc    *homework.Service
		AttendanceSvc  *attendance.Service
		FeeSvc         *fee.Service
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		deps       *ServerDeps
		app        *echo.Echo
		shutdown   chan<- os.Signal
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Server = (*server)(nil)

// NewServer builds the HTTP server. A shutdown signal is sent on shutdown when an integrity error is caught.
func NewServer(deps *ServerDeps, shutdown chan<- os.Signal) Server {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	s := &server{
		deps:       deps,
		app:        echo.New(),
		shutdown:   shutdown,
		validate:   validate,
		translator: translator,
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.CORSOrigins}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(s.app, jwt, s.deps.UserSvc, s.validate, conf)
	registerStudentAPI(s.app, jwt, s.deps.UserSvc, s.validate)
	registerHomeworkAPI(s.app, jwt, s.deps.HomeworkSvc, s.deps.UserSvc, s.validate)
	registerAttendanceAPI(s.app, jwt, s.deps.AttendanceSvc, s.validate)
	registerFeeAPI(s.app, jwt, s.deps.FeeSvc, s.deps.UserSvc, s.validate)
}

func (s *server) signalShutdown() {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Start() error {
	return s.app.Start(s.deps.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
