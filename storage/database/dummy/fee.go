package dummydb

import (
	"context"
	"sort"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	defer repo.db.lockWrite(ctx)()

	f.ID = repo.db.nextID("fees")
	repo.db.fees[f.ID] = f
	return f, nil
}

func (repo *feeRepository) UpdateFee(ctx context.Context, f fee.Fee) (fee.Fee, error) {
	defer repo.db.lockWrite(ctx)()

	orig, ok := repo.db.fees[f.ID]
	if !ok {
		return fee.Fee{}, core.NewNotFoundError("fee")
	}
	orig.ParentID = f.ParentID
	orig.AmountPaid = f.AmountPaid
	orig.PaidOn = f.PaidOn
	orig.UpdatedAt = f.UpdatedAt
	repo.db.fees[f.ID] = orig
	return orig, nil
}

func (repo *feeRepository) QueryFees(_ context.Context, filter fee.QueryFilter) ([]fee.Fee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fees := make([]fee.Fee, 0)
	for _, f := range repo.db.fees {
		if f.StudentID != filter.StudentID {
			continue
		}
		if filter.OutstandingOnly && f.AmountPaid >= f.AmountDue {
			continue
		}
		fees = append(fees, f)
	}
	sort.Slice(fees, func(i, j int) bool {
		if !fees[i].DueDate.Equal(fees[j].DueDate.Time) {
			return fees[i].DueDate.Before(fees[j].DueDate.Time)
		}
		return fees[i].ID < fees[j].ID
	})
	return fees, nil
}
