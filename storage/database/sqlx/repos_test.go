package sqlxrepos_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/services/email"
	"github.com/edutrack/backend/services/events"
	"github.com/edutrack/backend/storage/database"
	"github.com/edutrack/backend/storage/database/sqlx"
	"github.com/edutrack/backend/tests"
)

type env struct {
	db            *sqlx.DB
	usrSvc        user.Service
	homeworkSvc   *homework.Service
	attendanceSvc *attendance.Service
	feeSvc        *fee.Service
}

// prepareDB migrates and truncates the database at TEST_DATABASE_URL, skipping the test when unset.
func prepareDB(t *testing.T) env {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, database.Migrate(dbURL))
	db, err := database.OpenURL(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("TRUNCATE users, homework, attendance, fees RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	recorder := eventsvc.NewRecorder()
	tx := sqlxrepos.NewTransactor(db)
	usrSvc := user.NewServiceMock(tx, sqlxrepos.NewUserRepository(db), mailSvc, recorder, logger, conf)

	return env{
		db:            db,
		usrSvc:        usrSvc,
		homeworkSvc:   homework.NewService(tx, sqlxrepos.NewHomeworkRepository(db), usrSvc, recorder, logger),
		attendanceSvc: attendance.NewService(tx, sqlxrepos.NewAttendanceRepository(db), usrSvc, recorder, logger),
		feeSvc:        fee.NewService(tx, sqlxrepos.NewFeeRepository(db), usrSvc, mailSvc, recorder, logger),
	}
}

func count(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestUserRepository(t *testing.T) {
	e := prepareDB(t)
	ctx := context.Background()

	bob := testutil.CreateUser(t, e.usrSvc, "Bob", "bob", "bob@test.cd", "secret1", user.RoleParent)
	testutil.CreateUser(t, e.usrSvc, "Teacher", "teacher", "", "secret1", user.RoleTeacher)
	assert.Equal(t, 1, count(t, e.db, "parents"))
	assert.Equal(t, 1, count(t, e.db, "teachers"))

	_, err := e.usrSvc.Create(ctx, user.NewUser{Username: "bob", Password: "secret1", Role: "Admin"})
	assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
	_, err = e.usrSvc.Create(ctx, user.NewUser{Username: "bob2", Email: "bob@test.cd", Password: "secret1", Role: "Admin"})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	assert.Equal(t, 0, count(t, e.db, "admins"))

	kid := testutil.EnrollStudent(t, e.usrSvc, "Kid", "5A", bob.ID)
	std, err := e.usrSvc.GetStudent(ctx, kid.ID)
	require.NoError(t, err)
	assert.True(t, std.HasGuardian(bob.ID))

	students, err := e.usrSvc.QueryStudents(ctx, user.StudentFilter{ParentID: bob.ID})
	require.NoError(t, err)
	assert.Len(t, students, 1)

	usr, err := e.usrSvc.VerifyCredentials(ctx, "BOB@test.cd", "secret1")
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())

	users, err := e.usrSvc.Query(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleParent}})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)
}

func TestAcademicRepositories(t *testing.T) {
	e := prepareDB(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, e.usrSvc, "Teacher", "teacher", "", "secret1", user.RoleTeacher)
	bob := testutil.CreateUser(t, e.usrSvc, "Bob", "bob", "bob@test.cd", "secret1", user.RoleParent)
	kid := testutil.EnrollStudent(t, e.usrSvc, "Kid", "5A", bob.ID)

	t.Run("homework", func(t *testing.T) {
		hw := testutil.AssignHomework(t, e.homeworkSvc, teacher.ID, kid.ID, "Essay", "2024-03-01")
		_, err := e.homeworkSvc.Submit(ctx, homework.NewSubmission{HomeworkID: hw.ID, StudentID: kid.ID})
		require.NoError(t, err)
		_, err = e.homeworkSvc.Submit(ctx, homework.NewSubmission{HomeworkID: hw.ID, StudentID: kid.ID})
		assert.Equal(t, homework.ErrDuplicateSubmission, errors.Cause(err))

		_, err = e.homeworkSvc.RecordGrade(ctx, homework.GradeSubmission{StudentID: kid.ID, HomeworkID: hw.ID, Grade: "A"})
		require.NoError(t, err)
		progress, err := e.homeworkSvc.Progress(ctx, kid.ID)
		require.NoError(t, err)
		require.Len(t, progress, 1)
		assert.Equal(t, homework.StatusGraded, progress[0].Status)
	})

	t.Run("attendance", func(t *testing.T) {
		att, err := e.attendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: kid.ID, Date: "2024-03-01", Status: "Present"})
		require.NoError(t, err)
		att2, err := e.attendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: kid.ID, Date: "2024-03-01", Status: "Late"})
		require.NoError(t, err)
		assert.Equal(t, att.ID, att2.ID)

		report, err := e.attendanceSvc.Report(ctx, attendance.QueryFilter{StudentID: kid.ID})
		require.NoError(t, err)
		require.Len(t, report, 1)
		assert.Equal(t, attendance.StatusLate, report[0].Status)
	})

	t.Run("fees", func(t *testing.T) {
		testutil.CreateFee(t, e.feeSvc, kid.ID, "term 1", 50, "2024-01-01")
		amount := 70.0
		st, err := e.feeSvc.RecordPayment(ctx, bob.ID, fee.NewPayment{StudentID: kid.ID, Amount: &amount, Date: "2024-02-01"})
		require.NoError(t, err)
		require.Len(t, st.Fees, 2)
		assert.True(t, st.Fees[0].IsSettled())
		assert.Equal(t, "prepayment", st.Fees[1].Description)
		assert.Equal(t, -20.0, st.Balance)
	})
}
