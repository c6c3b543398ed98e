package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/fee"
)

const feeColumns = "id, student_id, parent_id, description, amount_due, amount_paid, due_date, paid_on, created_at, updated_at"

type feeRow struct {
	ID          int64      `db:"id"`
	StudentID   int64      `db:"student_id"`
	ParentID    null.Int64 `db:"parent_id"`
	Description string     `db:"description"`
	AmountDue   float64    `db:"amount_due"`
	AmountPaid  float64    `db:"amount_paid"`
	DueDate     core.Date  `db:"due_date"`
	PaidOn      core.Date  `db:"paid_on"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (row feeRow) toModel() fee.Fee {
	return fee.Fee{
		ID:          row.ID,
		StudentID:   row.StudentID,
		ParentID:    row.ParentID,
		Description: row.Description,
		AmountDue:   row.AmountDue,
		AmountPaid:  row.AmountPaid,
		DueDate:     row.DueDate,
		PaidOn:      row.PaidOn,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	q := `INSERT INTO fees (student_id, parent_id, description, amount_due, amount_paid, due_date, paid_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := conn(ctx, repo.db).GetContext(
		ctx, &f.ID, q,
		f.StudentID, f.ParentID, f.Description, f.AmountDue, f.AmountPaid, f.DueDate, f.PaidOn, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fee.Fee{}, errors.Wrap(err, "inserting fee")
	}
	return f, nil
}

func (repo *feeRepository) UpdateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	q := `UPDATE fees SET parent_id = $2, amount_paid = $3, paid_on = $4, updated_at = $5
		WHERE id = $1 RETURNING ` + feeColumns
	var row feeRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, q, f.ID, f.ParentID, f.AmountPaid, f.PaidOn, f.UpdatedAt); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return fee.Fee{}, core.NewNotFoundError("fee")
		}
		return fee.Fee{}, errors.Wrap(err, "updating fee")
	}
	return row.toModel(), nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	q := "SELECT " + feeColumns + " FROM fees WHERE student_id = $1"
	if filter.OutstandingOnly {
		// locked until the unit of work ends
		q += " AND amount_paid < amount_due ORDER BY due_date ASC, id ASC FOR UPDATE"
	} else {
		q += " ORDER BY due_date ASC, id ASC"
	}

	var rows []feeRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, filter.StudentID); err != nil {
		return nil, errors.Wrap(err, "selecting fees")
	}
	fees := make([]fee.Fee, len(rows))
	for i, row := range rows {
		fees[i] = row.toModel()
	}
	return fees, nil
}
