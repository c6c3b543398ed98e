package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/homework"
)

const (
	homeworkColumns   = "id, title, description, due_date, teacher_id, student_id, created_at"
	submissionColumns = "id, homework_id, student_id, submitted_at, grade"
)

type homeworkRepository struct {
	db *sqlx.DB
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(db *sqlx.DB) homework.Repository {
	return &homeworkRepository{db: db}
}

type hwRow struct {
	ID          int64     `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     core.Date `db:"due_date"`
	TeacherID   int64     `db:"teacher_id"`
	StudentID   int64     `db:"student_id"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row hwRow) toModel() homework.Homework {
	return homework.Homework{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		DueDate:     row.DueDate,
		TeacherID:   row.TeacherID,
		StudentID:   row.StudentID,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type subRow struct {
	ID          int64       `db:"id"`
	HomeworkID  int64       `db:"homework_id"`
	StudentID   int64       `db:"student_id"`
	SubmittedAt time.Time   `db:"submitted_at"`
	Grade       null.String `db:"grade"`
}

func (row subRow) toModel() homework.Submission {
	return homework.Submission{
		ID:          row.ID,
		HomeworkID:  row.HomeworkID,
		StudentID:   row.StudentID,
		SubmittedAt: row.SubmittedAt.UTC(),
		Grade:       row.Grade,
	}
}

func (repo *homeworkRepository) CreateHomework(ctx context.Context, hw homework.Homework) (homework.Homework, error) {
	q := `INSERT INTO homework (title, description, due_date, teacher_id, student_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := conn(ctx, repo.db).GetContext(ctx, &hw.ID, q, hw.Title, hw.Description, hw.DueDate, hw.TeacherID, hw.StudentID, hw.CreatedAt)
	if err != nil {
		return homework.Homework{}, errors.Wrap(err, "inserting homework")
	}
	return hw, nil
}

func (repo *homeworkRepository) GetHomework(ctx context.Context, id int64) (homework.Homework, error) {
	var row hwRow
	err := conn(ctx, repo.db).GetContext(ctx, &row, "SELECT "+homeworkColumns+" FROM homework WHERE id = $1", id)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return homework.Homework{}, homework.ErrNotFound
		}
		return homework.Homework{}, errors.Wrap(err, "selecting homework")
	}
	return row.toModel(), nil
}

func (repo *homeworkRepository) QueryHomework(ctx context.Context, filter homework.QueryFilter) ([]homework.Homework, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != 0 {
		args = append(args, filter.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.TeacherID != 0 {
		args = append(args, filter.TeacherID)
		conds = append(conds, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	q := "SELECT " + homeworkColumns + " FROM homework"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY due_date ASC, id ASC"

	var rows []hwRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting homework")
	}
	hws := make([]homework.Homework, len(rows))
	for i, row := range rows {
		hws[i] = row.toModel()
	}
	return hws, nil
}

func (repo *homeworkRepository) CreateSubmission(ctx context.Context, sub homework.Submission) (homework.Submission, error) {
	q := `INSERT INTO homework_submissions (homework_id, student_id, submitted_at, grade)
		VALUES ($1, $2, $3, $4) RETURNING id`
	err := conn(ctx, repo.db).GetContext(ctx, &sub.ID, q, sub.HomeworkID, sub.StudentID, sub.SubmittedAt, sub.Grade)
	if err != nil {
		if _, ok := uniqueViolationOn(err); ok {
			return homework.Submission{}, homework.ErrDuplicateSubmission
		}
		return homework.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo *homeworkRepository) GetSubmission(ctx context.Context, studentID, homeworkID int64) (homework.Submission, error) {
	var row subRow
	q := "SELECT " + submissionColumns + " FROM homework_submissions WHERE student_id = $1 AND homework_id = $2"
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, studentID, homeworkID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return homework.Submission{}, homework.ErrNoSubmissions
		}
		return homework.Submission{}, errors.Wrap(err, "selecting submission")
	}
	return row.toModel(), nil
}

func (repo *homeworkRepository) UpdateSubmission(ctx context.Context, sub homework.Submission) (homework.Submission, error) {
	res, err := conn(ctx, repo.db).ExecContext(ctx, "UPDATE homework_submissions SET grade = $2 WHERE id = $1", sub.ID, sub.Grade)
	if err != nil {
		return homework.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n, err := res.RowsAffected(); err != nil {
		return homework.Submission{}, errors.Wrap(err, "updating submission")
	} else if n == 0 {
		return homework.Submission{}, homework.ErrNoSubmissions
	}
	return sub, nil
}

func (repo *homeworkRepository) QuerySubmissions(ctx context.Context, studentID int64) ([]homework.Submission, error) {
	var rows []subRow
	q := "SELECT " + submissionColumns + " FROM homework_submissions WHERE student_id = $1 ORDER BY submitted_at ASC, id ASC"
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]homework.Submission, len(rows))
	for i, row := range rows {
		subs[i] = row.toModel()
	}
	return subs, nil
}
