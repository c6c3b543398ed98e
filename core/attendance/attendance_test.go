package attendance_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/tests"
)

func TestNewAttendance_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	tests := []struct {
		name string
		na   attendance.NewAttendance
		want map[string]string
	}{
		{name: "valid", na: attendance.NewAttendance{StudentID: 1, Date: "2024-03-01", Status: " Late "}},
		{name: "date is optional", na: attendance.NewAttendance{StudentID: 1, Status: "Present"}},
		{
			name: "missing fields", na: attendance.NewAttendance{},
			want: map[string]string{"student_id": "this field is required", "status": "this field is required"},
		},
		{
			name: "invalid status", na: attendance.NewAttendance{StudentID: 1, Status: "Tardy"},
			want: map[string]string{"status": "invalid status, expected one of Present, Absent, Late"},
		},
		{
			name: "invalid date", na: attendance.NewAttendance{StudentID: 1, Date: "2024-13-01", Status: "Absent"},
			want: map[string]string{"date": "invalid date, expected YYYY-MM-DD"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.na.Validate(validate)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs))
			assert.Equal(t, tt.want, core.TranslateErrors(vErrs, translator))
		})
	}
}

func TestService_Record(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	kid := testutil.EnrollStudent(t, env.UserSvc, "Kid", "5A", 0)
	env.Events.Reset()

	_, err := env.AttendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: kid.ID, Status: "Tardy"})
	assert.True(t, errors.Is(err, attendance.ErrInvalidStatus))

	_, err = env.AttendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: 999, Status: "Present"})
	assert.Equal(t, user.ErrStudentNotFound, errors.Cause(err))

	att, err := env.AttendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: kid.ID, Status: "Present"})
	require.NoError(t, err)
	assert.Equal(t, core.Today(), att.Date)

	// same day again
	att2, err := env.AttendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: kid.ID, Date: core.Today().String(), Status: "Absent"})
	require.NoError(t, err)
	assert.Equal(t, att.ID, att2.ID)
	assert.Equal(t, attendance.StatusAbsent, att2.Status)
	assert.Equal(t, 1, env.DB.Count("attendance"))

	assert.Equal(t, []string{core.EventAttendanceRecorded, core.EventAttendanceRecorded}, env.Events.Names())
}

func TestService_Report(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	report, err := env.AttendanceSvc.Report(ctx, attendance.QueryFilter{})
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Empty(t, report)

	kid := testutil.EnrollStudent(t, env.UserSvc, "Kid", "5A", 0)
	other := testutil.EnrollStudent(t, env.UserSvc, "Other", "5A", 0)
	record := func(studentID int64, date, status string) {
		_, err := env.AttendanceSvc.Record(ctx, attendance.NewAttendance{StudentID: studentID, Date: date, Status: status})
		require.NoError(t, err)
	}
	record(other.ID, "2024-03-01", "Late")
	record(kid.ID, "2024-03-02", "Present")
	record(kid.ID, "2024-03-01", "Absent")

	date := func(s string) core.Date {
		d, err := core.ParseDate(s)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name   string
		filter attendance.QueryFilter
		want   []attendance.Status
	}{
		{name: "all", want: []attendance.Status{attendance.StatusAbsent, attendance.StatusLate, attendance.StatusPresent}},
		{name: "student", filter: attendance.QueryFilter{StudentID: kid.ID}, want: []attendance.Status{attendance.StatusAbsent, attendance.StatusPresent}},
		{name: "from", filter: attendance.QueryFilter{From: date("2024-03-02")}, want: []attendance.Status{attendance.StatusPresent}},
		{name: "to", filter: attendance.QueryFilter{To: date("2024-03-01")}, want: []attendance.Status{attendance.StatusAbsent, attendance.StatusLate}},
		{name: "none", filter: attendance.QueryFilter{From: date("2025-01-01")}, want: []attendance.Status{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := env.AttendanceSvc.Report(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]attendance.Status, len(report))
			for i, att := range report {
				got[i] = att.Status
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
