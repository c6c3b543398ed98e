package homework

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
)

// Submission statuses
const (
	StatusSubmitted    = "Submitted"
	StatusNotSubmitted = "Not Submitted"
	StatusGraded       = "Graded"
)

type Homework struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     core.Date `json:"due_date"`
	TeacherID   int64     `json:"teacher_id"`
	StudentID   int64     `json:"student_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Submission links one Student to one Homework. Grade is set once the work is marked.
type Submission struct {
	ID          int64       `json:"id"`
	HomeworkID  int64       `json:"homework_id"`
	StudentID   int64       `json:"student_id"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Grade       null.String `json:"grade"`
}

// Grade accepts either a JSON number or a JSON string.
type Grade string

func (g *Grade) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*g = ""
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*g = Grade(strconv.FormatFloat(num, 'f', -1, 64))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*g = Grade(core.CleanString(s))
	return nil
}

func (g Grade) nullString() null.String {
	return null.NewString(string(g), g != "")
}

type NewHomework struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	DueDate     string `json:"due_date" validate:"required,isodate"`
	StudentID   int64  `json:"student_id" validate:"required,gt=0"`
}

func (nh *NewHomework) Validate(validate *validator.Validate) error {
	nh.Title = core.CleanString(nh.Title)
	nh.Description = core.CleanString(nh.Description)
	return validate.Struct(nh)
}

type NewSubmission struct {
	HomeworkID int64 `json:"homework_id" validate:"required,gt=0"`
	StudentID  int64 `json:"student_id" validate:"required,gt=0"`
	Score      Grade `json:"score"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error { return validate.Struct(ns) }

type GradeSubmission struct {
	StudentID  int64 `json:"student_id" validate:"required,gt=0"`
	HomeworkID int64 `json:"homework_id" validate:"required,gt=0"`
	Grade      Grade `json:"grade" validate:"required"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error { return validate.Struct(gs) }

// AssignedHomework is a homework as seen by a guardian.
type AssignedHomework struct {
	HomeworkID  int64     `json:"homework_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     core.Date `json:"due_date"`
	Status      string    `json:"status"`
}

// ProgressEntry is one submission as seen by a teacher.
type ProgressEntry struct {
	HomeworkID  int64       `json:"homework_id"`
	Title       string      `json:"title"`
	Score       null.String `json:"score"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Status      string      `json:"status"`
}

type QueryFilter struct {
	StudentID int64
	TeacherID int64
}
