package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
)

const uniqueViolation = "23505"

type txKey struct{}

// queryer is implemented by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Transactor runs units of work in a database transaction carried by ctx.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return rollback(tx, err)
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// rollback undoes a failed unit of work. When the rollback itself fails the state
// of the connection is unknown and the returned error asks for a shutdown.
func rollback(tx interface{ Rollback() error }, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return errors.Wrap(core.NewShutdownError("rolling back: "+rbErr.Error()), err.Error())
	}
	return err
}

// conn returns the transaction carried by ctx, or the pool outside of a unit of work.
func conn(ctx context.Context, db *sqlx.DB) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// uniqueViolationOn reports whether err is a unique violation, returning the violated constraint.
func uniqueViolationOn(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
