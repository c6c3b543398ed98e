package dummydb

import (
	"context"
	"sort"

	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
)

type homeworkRepository struct {
	db *DB
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db *DB) homework.Repository {
	return &homeworkRepository{db: db}
}

func (repo *homeworkRepository) CreateHomework(ctx context.Context, hw homework.Homework) (homework.Homework, error) {
	defer repo.db.lockWrite(ctx)()

	// foreign keys
	if _, ok := repo.db.profiles[hw.TeacherID].(user.TeacherProfile); !ok {
		return homework.Homework{}, user.ErrNotFound
	}
	if _, ok := repo.db.profiles[hw.StudentID].(user.StudentProfile); !ok {
		return homework.Homework{}, user.ErrStudentNotFound
	}
	hw.ID = repo.db.nextID("homework")
	repo.db.homework[hw.ID] = hw
	return hw, nil
}

func (repo *homeworkRepository) GetHomework(_ context.Context, id int64) (homework.Homework, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if hw, ok := repo.db.homework[id]; ok {
		return hw, nil
	}
	return homework.Homework{}, homework.ErrNotFound
}

func (repo *homeworkRepository) QueryHomework(_ context.Context, filter homework.QueryFilter) ([]homework.Homework, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	hws := make([]homework.Homework, 0)
	for _, hw := range repo.db.homework {
		if filter.StudentID != 0 && hw.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != 0 && hw.TeacherID != filter.TeacherID {
			continue
		}
		hws = append(hws, hw)
	}
	sort.Slice(hws, func(i, j int) bool {
		if !hws[i].DueDate.Equal(hws[j].DueDate.Time) {
			return hws[i].DueDate.Before(hws[j].DueDate.Time)
		}
		return hws[i].ID < hws[j].ID
	})
	return hws, nil
}

func (repo *homeworkRepository) CreateSubmission(ctx context.Context, sub homework.Submission) (homework.Submission, error) {
	defer repo.db.lockWrite(ctx)()

	// unique (student_id, homework_id)
	for _, s := range repo.db.submissions {
		if s.StudentID == sub.StudentID && s.HomeworkID == sub.HomeworkID {
			return homework.Submission{}, homework.ErrDuplicateSubmission
		}
	}
	sub.ID = repo.db.nextID("homework_submissions")
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *homeworkRepository) GetSubmission(_ context.Context, studentID, homeworkID int64) (homework.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.StudentID == studentID && s.HomeworkID == homeworkID {
			return s, nil
		}
	}
	return homework.Submission{}, homework.ErrNoSubmissions
}

func (repo *homeworkRepository) UpdateSubmission(ctx context.Context, sub homework.Submission) (homework.Submission, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return homework.Submission{}, homework.ErrNoSubmissions
	}
	orig.Grade = sub.Grade
	repo.db.submissions[sub.ID] = orig
	return orig, nil
}

func (repo *homeworkRepository) QuerySubmissions(_ context.Context, studentID int64) ([]homework.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]homework.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.StudentID == studentID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}
