package core

import (
	"context"
	"strings"
)

type (
	// Transactor runs units of work against the store.
	// fn's changes are committed when it returns nil and rolled back otherwise (panics included).
	// Calling InTx with a ctx that already carries a unit of work joins it.
	Transactor interface {
		InTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingClause renders orderings whose fields are in allowed (json name -> column); others are dropped.
func OrderingClause(orderings []DBOrdering, allowed map[string]string) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return strings.Join(parts, ", ")
}
