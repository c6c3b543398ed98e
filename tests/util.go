package testutil

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/services/email"
	"github.com/edutrack/backend/services/events"
	"github.com/edutrack/backend/services/logger"
	"github.com/edutrack/backend/storage/database/dummy"
)

// Env bundles the services of the application running on the in-memory store.
type Env struct {
	Conf   *core.Config
	DB     *dummydb.DB
	Logger core.Logger
	Mail   *emailsvc.ConsoleServiceMock
	Events *eventsvc.Recorder

	UserRepo      user.Repository
	UserSvc       user.Service
	HomeworkSvc   *homework.Service
	AttendanceSvc *attendance.Service
	FeeSvc        *fee.Service
}

// NewLogger returns a logger that discards everything and never reports to Rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zerolog.Nop(), conf)
	logger.Enable(false)
	return logger
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	db := dummydb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	recorder := eventsvc.NewRecorder()

	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(db, usrRepo, mailSvc, recorder, logger, conf)

	return &Env{
		Conf:          conf,
		DB:            db,
		Logger:        logger,
		Mail:          mailSvc,
		Events:        recorder,
		UserRepo:      usrRepo,
		UserSvc:       usrSvc,
		HomeworkSvc:   homework.NewService(db, dummydb.NewHomeworkRepository(db), usrSvc, recorder, logger),
		AttendanceSvc: attendance.NewService(db, dummydb.NewAttendanceRepository(db), usrSvc, recorder, logger),
		FeeSvc:        fee.NewService(db, dummydb.NewFeeRepository(db), usrSvc, mailSvc, recorder, logger),
	}
}

// CreateUser creates a user through the service; email may be empty.
func CreateUser(t *testing.T, svc user.Service, name, uname, email, pwd string, role user.Role) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
		Role:     string(role),
	})
	require.NoError(t, err, "CreateUser()")
	return usr
}

// EnrollStudent enrolls a student under parentID (0 for none).
func EnrollStudent(t *testing.T, svc user.Service, name, grade string, parentID int64) user.Student {
	t.Helper()
	std, err := svc.EnrollStudent(context.Background(), user.NewStudent{Name: name, Grade: grade, ParentID: parentID})
	require.NoError(t, err, "EnrollStudent()")
	return std
}

// AssignHomework assigns a homework due on dueDate (YYYY-MM-DD).
func AssignHomework(t *testing.T, svc *homework.Service, teacherID, studentID int64, title, dueDate string) homework.Homework {
	t.Helper()
	hw, err := svc.Assign(context.Background(), teacherID, homework.NewHomework{
		Title:       title,
		Description: title + " description",
		DueDate:     dueDate,
		StudentID:   studentID,
	})
	require.NoError(t, err, "AssignHomework()")
	return hw
}

// CreateFee bills studentID amount, due on dueDate (YYYY-MM-DD).
func CreateFee(t *testing.T, svc *fee.Service, studentID int64, descr string, amount float64, dueDate string) fee.Fee {
	t.Helper()
	f, err := svc.Create(context.Background(), fee.NewFee{
		StudentID:   studentID,
		Description: descr,
		AmountDue:   &amount,
		DueDate:     dueDate,
	})
	require.NoError(t, err, "CreateFee()")
	return f
}
