package dummydb

import (
	"context"
	"sort"

	"github.com/edutrack/backend/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) UpsertAttendance(ctx context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	defer repo.db.lockWrite(ctx)()

	for id, existing := range repo.db.attendance {
		if existing.StudentID == att.StudentID && existing.Date.Equal(att.Date.Time) {
			existing.Status = att.Status
			repo.db.attendance[id] = existing
			return existing, nil
		}
	}
	att.ID = repo.db.nextID("attendance")
	repo.db.attendance[att.ID] = att
	return att, nil
}

func (repo *attendanceRepository) QueryAttendance(_ context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	atts := make([]attendance.Attendance, 0)
	for _, att := range repo.db.attendance {
		if filter.StudentID != 0 && att.StudentID != filter.StudentID {
			continue
		}
		if !filter.From.IsZero() && att.Date.Before(filter.From.Time) {
			continue
		}
		if !filter.To.IsZero() && att.Date.After(filter.To.Time) {
			continue
		}
		atts = append(atts, att)
	}
	sort.Slice(atts, func(i, j int) bool {
		if !atts[i].Date.Equal(atts[j].Date.Time) {
			return atts[i].Date.Before(atts[j].Date.Time)
		}
		return atts[i].StudentID < atts[j].StudentID
	})
	return atts, nil
}
