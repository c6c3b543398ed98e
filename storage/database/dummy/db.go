package dummydb

import (
	"context"
	"sync"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
)

type txKey struct{}

// DB is an in-memory store. Units of work run one at a time and are undone on failure.
type DB struct {
	sync.RWMutex
	txMu sync.Mutex

	tables
}

type tables struct {
	seq         map[string]int64
	users       map[int64]user.User
	profiles    map[int64]user.Profile
	homework    map[int64]homework.Homework
	submissions map[int64]homework.Submission
	attendance  map[int64]attendance.Attendance
	fees        map[int64]fee.Fee
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{tables: tables{
		seq:         make(map[string]int64),
		users:       make(map[int64]user.User),
		profiles:    make(map[int64]user.Profile),
		homework:    make(map[int64]homework.Homework),
		submissions: make(map[int64]homework.Submission),
		attendance:  make(map[int64]attendance.Attendance),
		fees:        make(map[int64]fee.Fee),
	}}
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	snapshot := db.snapshot()
	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.restore(snapshot)
	}
	return err
}

// lockWrite locks the tables for a write and returns the unlock func.
// A write outside of a unit of work waits for the running one to finish,
// so that its rollback cannot discard it.
func (db *DB) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		db.Lock()
		return db.Unlock
	}
	db.txMu.Lock()
	db.Lock()
	return func() {
		db.Unlock()
		db.txMu.Unlock()
	}
}

// Count returns the number of rows of table; used by tests to check rollbacks.
func (db *DB) Count(table string) int {
	db.RLock()
	defer db.RUnlock()
	switch table {
	case "users":
		return len(db.users)
	case "profiles":
		return len(db.profiles)
	case "homework":
		return len(db.homework)
	case "homework_submissions":
		return len(db.submissions)
	case "attendance":
		return len(db.attendance)
	case "fees":
		return len(db.fees)
	}
	return 0
}

func (db *DB) nextID(table string) int64 {
	db.seq[table]++
	return db.seq[table]
}

func (db *DB) snapshot() tables {
	db.RLock()
	defer db.RUnlock()
	return tables{
		seq:         cloneMap(db.seq),
		users:       cloneMap(db.users),
		profiles:    cloneMap(db.profiles),
		homework:    cloneMap(db.homework),
		submissions: cloneMap(db.submissions),
		attendance:  cloneMap(db.attendance),
		fees:        cloneMap(db.fees),
	}
}

func (db *DB) restore(t tables) {
	db.Lock()
	defer db.Unlock()
	db.tables = t
}

// rows are stored by value so a shallow copy is enough
func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
