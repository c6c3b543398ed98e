package homework

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("homework")
	ErrNoSubmissions       = core.NewNotFoundError("submission")
	ErrDuplicateSubmission = core.NewConflictError("homework_id", "homework already submitted for this student")
)

type (
	Repository interface {
		CreateHomework(ctx context.Context, hw Homework) (Homework, error)
		GetHomework(ctx context.Context, id int64) (Homework, error)
		QueryHomework(ctx context.Context, filter QueryFilter) ([]Homework, error)
		// CreateSubmission fails with ErrDuplicateSubmission when (student, homework) was already submitted.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, studentID, homeworkID int64) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, studentID int64) ([]Submission, error)
	}

	// StudentGetter resolves students; it fails with user.ErrStudentNotFound.
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

// Assign creates a homework for a student. Nothing is stored when the student does not exist.
func (svc *Service) Assign(ctx context.Context, teacherID int64, nh NewHomework) (Homework, error) {
	due, err := core.ParseDate(nh.DueDate)
	if err != nil {
		return Homework{}, core.NewDateError("due_date")
	}

	var hw Homework
	err = svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.students.GetStudent(ctx, nh.StudentID); err != nil {
			return err
		}
		var err error
		hw, err = svc.repo.CreateHomework(ctx, Homework{
			Title:       nh.Title,
			Description: nh.Description,
			DueDate:     due,
			TeacherID:   teacherID,
			StudentID:   nh.StudentID,
			CreatedAt:   time.Now().UTC(),
		})
		return errors.Wrap(err, "inserting homework")
	})
	if err != nil {
		return Homework{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventHomeworkAssigned, hw))
	return hw, nil
}

func (svc *Service) GetHomework(ctx context.Context, id int64) (Homework, error) {
	return svc.repo.GetHomework(ctx, id)
}

// getAssigned returns the homework only if it was assigned to studentID.
func (svc *Service) getAssigned(ctx context.Context, homeworkID, studentID int64) (Homework, error) {
	hw, err := svc.repo.GetHomework(ctx, homeworkID)
	if err != nil {
		return Homework{}, err
	}
	if hw.StudentID != studentID {
		return Homework{}, ErrNotFound
	}
	return hw, nil
}

// Submit records a student's submission; a second submission for the same homework fails with ErrDuplicateSubmission.
func (svc *Service) Submit(ctx context.Context, ns NewSubmission) (Submission, error) {
	var sub Submission
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.students.GetStudent(ctx, ns.StudentID); err != nil {
			return err
		}
		if _, err := svc.getAssigned(ctx, ns.HomeworkID, ns.StudentID); err != nil {
			return err
		}
		if _, err := svc.repo.GetSubmission(ctx, ns.StudentID, ns.HomeworkID); err == nil {
			return ErrDuplicateSubmission
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "getting submission")
		}

		var err error
		sub, err = svc.repo.CreateSubmission(ctx, Submission{
			HomeworkID:  ns.HomeworkID,
			StudentID:   ns.StudentID,
			SubmittedAt: time.Now().UTC(),
			Grade:       ns.Score.nullString(),
		})
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventHomeworkSubmitted, sub))
	return sub, nil
}

// RecordGrade sets the grade of a submission, creating the submission when the work was handed in offline.
func (svc *Service) RecordGrade(ctx context.Context, gs GradeSubmission) (Submission, error) {
	var sub Submission
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.students.GetStudent(ctx, gs.StudentID); err != nil {
			return err
		}
		if _, err := svc.getAssigned(ctx, gs.HomeworkID, gs.StudentID); err != nil {
			return err
		}

		var err error
		sub, err = svc.repo.GetSubmission(ctx, gs.StudentID, gs.HomeworkID)
		switch {
		case err == nil:
			sub.Grade = gs.Grade.nullString()
			sub, err = svc.repo.UpdateSubmission(ctx, sub)
		case core.IsNotFound(err):
			sub, err = svc.repo.CreateSubmission(ctx, Submission{
				HomeworkID:  gs.HomeworkID,
				StudentID:   gs.StudentID,
				SubmittedAt: time.Now().UTC(),
				Grade:       gs.Grade.nullString(),
			})
		}
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	svc.publish(ctx, core.NewEvent(core.EventHomeworkGraded, sub))
	return sub, nil
}

// StudentHomework lists the homework assigned to a student with its submission status.
// It fails with ErrNotFound when none was assigned.
func (svc *Service) StudentHomework(ctx context.Context, studentID int64) ([]AssignedHomework, error) {
	hws, err := svc.repo.QueryHomework(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	if len(hws) == 0 {
		return nil, ErrNotFound
	}
	subs, err := svc.repo.QuerySubmissions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	submitted := make(map[int64]bool, len(subs))
	for _, sub := range subs {
		submitted[sub.HomeworkID] = true
	}

	list := make([]AssignedHomework, 0, len(hws))
	for _, hw := range hws {
		status := StatusNotSubmitted
		if submitted[hw.ID] {
			status = StatusSubmitted
		}
		list = append(list, AssignedHomework{
			HomeworkID:  hw.ID,
			Title:       hw.Title,
			Description: hw.Description,
			DueDate:     hw.DueDate,
			Status:      status,
		})
	}
	return list, nil
}

// Progress lists a student's submissions. It fails with ErrNoSubmissions when there are none.
func (svc *Service) Progress(ctx context.Context, studentID int64) ([]ProgressEntry, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}
	hws, err := svc.repo.QueryHomework(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	titles := make(map[int64]string, len(hws))
	for _, hw := range hws {
		titles[hw.ID] = hw.Title
	}

	progress := make([]ProgressEntry, 0, len(subs))
	for _, sub := range subs {
		status := StatusSubmitted
		if sub.Grade.Valid {
			status = StatusGraded
		}
		progress = append(progress, ProgressEntry{
			HomeworkID:  sub.HomeworkID,
			Title:       titles[sub.HomeworkID],
			Score:       sub.Grade,
			SubmittedAt: sub.SubmittedAt,
			Status:      status,
		})
	}
	return progress, nil
}

func (svc *Service) publish(ctx context.Context, events ...core.Event) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(ctx, events...); err != nil {
		svc.logger.Error("publishing events", err)
	}
}
