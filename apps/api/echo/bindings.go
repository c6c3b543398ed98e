package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core"
)

var (
	orderingParam = "ordering"

	errInvalidQuery   = errors.New("invalid query parameters")
	errInvalidIDValue = errors.New("invalid id")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// idParam parses a positive integer path parameter; anything else is reported as not found.
func idParam(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// dateQueryParam parses an optional YYYY-MM-DD query parameter.
func dateQueryParam(ctx echo.Context, name string) (core.Date, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return core.Date{}, core.NewDateError(name)
	}
	return d, nil
}

// bindQuery binds the query parameters into dest; failures are reported as a bad request.
func bindQuery(ctx echo.Context, dest interface{}) error {
	if err := ctx.Bind(dest); err != nil {
		return core.NewValidationError(errInvalidQuery)
	}
	return nil
}

// idQueryParam parses an optional positive integer query parameter; 0 when absent.
func idQueryParam(ctx echo.Context, name string) (int64, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(errInvalidIDValue, core.FieldError{Field: name, Error: errInvalidIDValue.Error()})
	}
	return id, nil
}
