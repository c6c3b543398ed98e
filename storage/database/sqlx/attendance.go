package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
)

type attendanceRow struct {
	ID        int64     `db:"id"`
	StudentID int64     `db:"student_id"`
	Date      core.Date `db:"date"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
}

func (row attendanceRow) toModel() attendance.Attendance {
	return attendance.Attendance{
		ID:        row.ID,
		StudentID: row.StudentID,
		Date:      row.Date,
		Status:    attendance.Status(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	q := `INSERT INTO attendance (student_id, date, status, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status
		RETURNING id, student_id, date, status, created_at`
	var row attendanceRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, att.StudentID, att.Date, string(att.Status), att.CreatedAt); err != nil {
		return attendance.Attendance{}, errors.Wrap(err, "upserting attendance")
	}
	return row.toModel(), nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != 0 {
		args = append(args, filter.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	q := "SELECT id, student_id, date, status, created_at FROM attendance"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY date ASC, student_id ASC"

	var rows []attendanceRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	atts := make([]attendance.Attendance, len(rows))
	for i, row := range rows {
		atts[i] = row.toModel()
	}
	return atts, nil
}
