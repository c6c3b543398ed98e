package attendance

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
)

type Status string

// Statuses
const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
)

var (
	AllStatuses = []Status{StatusPresent, StatusAbsent, StatusLate}

	statusTag  = "attendance_status"
	statusText = "invalid status, expected one of Present, Absent, Late"

	ErrInvalidStatus = errors.New("invalid status")
)

func (s Status) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Attendance is the status of one student on one day.
type Attendance struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Date      core.Date `json:"date"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type NewAttendance struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Date      string `json:"date" validate:"omitempty,isodate"` // defaults to today
	Status    string `json:"status" validate:"required,attendance_status"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Status = core.CleanString(na.Status)
	return validate.Struct(na)
}

type QueryFilter struct {
	StudentID int64     `query:"student_id"`
	From      core.Date // inclusive
	To        core.Date // inclusive
}

type (
	Repository interface {
		// UpsertAttendance replaces the status recorded for (student, date), if any.
		UpsertAttendance(ctx context.Context, att Attendance) (Attendance, error)
		QueryAttendance(ctx context.Context, filter QueryFilter) ([]Attendance, error)
	}

	StudentGetter interface {
		GetStudent(ctx context.Context, id int64) (user.Student, error)
	}

	Service struct {
		db       core.Transactor
		repo     Repository
		students StudentGetter
		events   core.EventPublisher
		logger   core.Logger
	}
)

func NewService(db core.Transactor, repo Repository, students StudentGetter, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, students: students, events: events, logger: logger}
}

// Record stores a student's attendance for a day; recording the same day again overwrites the status.
func (svc *Service) Record(ctx context.Context, na NewAttendance) (Attendance, error) {
	status := Status(na.Status)
	if !status.IsValid() {
		return Attendance{}, core.NewValidationError(ErrInvalidStatus, core.FieldError{Field: "status", Error: statusText})
	}
	date := core.Today()
	if na.Date != "" {
		var err error
		if date, err = core.ParseDate(na.Date); err != nil {
			return Attendance{}, core.NewDateError("date")
		}
	}

	var att Attendance
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.students.GetStudent(ctx, na.StudentID); err != nil {
			return err
		}
		var err error
		att, err = svc.repo.UpsertAttendance(ctx, Attendance{
			StudentID: na.StudentID,
			Date:      date,
			Status:    status,
			CreatedAt: time.Now().UTC(),
		})
		return errors.Wrap(err, "upserting attendance")
	})
	if err != nil {
		return Attendance{}, err
	}

	if svc.events != nil {
		if err := svc.events.Publish(ctx, core.NewEvent(core.EventAttendanceRecorded, att)); err != nil {
			svc.logger.Error("publishing events", err)
		}
	}
	return att, nil
}

// Report returns the matching records ordered by date then student. It is empty, not an error, when nothing matches.
func (svc *Service) Report(ctx context.Context, filter QueryFilter) ([]Attendance, error) {
	atts, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return nil, err
	}
	if atts == nil {
		atts = []Attendance{}
	}
	return atts, nil
}

// InitValidators registers the attendance_status tag.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}
