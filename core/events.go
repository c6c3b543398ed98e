package core

import (
	"context"
	"time"
)

// Event names
const (
	EventUserCreated        = "user.created"
	EventStudentEnrolled    = "student.enrolled"
	EventHomeworkAssigned   = "homework.assigned"
	EventHomeworkSubmitted  = "homework.submitted"
	EventHomeworkGraded     = "homework.graded"
	EventAttendanceRecorded = "attendance.recorded"
	EventPaymentRecorded    = "payment.recorded"
)

type Event struct {
	Name       string      `json:"name"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func NewEvent(name string, payload interface{}) Event {
	return Event{Name: name, OccurredAt: time.Now().UTC(), Payload: payload}
}

// EventPublisher is any service that can broadcast domain events.
// Events are published after their unit of work has committed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
