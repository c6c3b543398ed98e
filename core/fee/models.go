package fee

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
)

// Fee is an amount owed by a student. Prepaid rows (AmountDue 0) hold payments made in advance.
type Fee struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"student_id"`
	ParentID    null.Int64 `json:"parent_id"` // last payer
	Description string     `json:"description"`
	AmountDue   float64    `json:"amount_due"`
	AmountPaid  float64    `json:"amount_paid"`
	DueDate     core.Date  `json:"due_date"`
	PaidOn      core.Date  `json:"paid_on"` // set once fully settled
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (f Fee) Outstanding() float64 {
	return core.RoundAmount(math.Max(0, f.AmountDue-f.AmountPaid))
}

func (f Fee) IsSettled() bool { return f.Outstanding() == 0 }

type NewFee struct {
	StudentID   int64    `json:"student_id" validate:"required,gt=0"`
	Description string   `json:"description" validate:"max=255"`
	AmountDue   *float64 `json:"amount_due" validate:"required,gt=0"`
	DueDate     string   `json:"due_date" validate:"required,isodate"`
}

func (nf *NewFee) Validate(validate *validator.Validate) error {
	nf.Description = core.CleanString(nf.Description)
	return validate.Struct(nf)
}

type NewPayment struct {
	StudentID int64    `json:"student_id" validate:"required,gt=0"`
	Amount    *float64 `json:"amount" validate:"required,gte=0"`
	Date      string   `json:"date" validate:"omitempty,isodate"` // defaults to today
}

func (np *NewPayment) Validate(validate *validator.Validate) error { return validate.Struct(np) }

// Statement sums a student's fees; a negative Balance is a credit.
type Statement struct {
	StudentID int64   `json:"student_id"`
	Fees      []Fee   `json:"fees"`
	TotalDue  float64 `json:"total_due"`
	TotalPaid float64 `json:"total_paid"`
	Balance   float64 `json:"balance"`
}

func NewStatement(studentID int64, fees []Fee) Statement {
	st := Statement{StudentID: studentID, Fees: fees}
	if st.Fees == nil {
		st.Fees = []Fee{}
	}
	for _, f := range fees {
		st.TotalDue += f.AmountDue
		st.TotalPaid += f.AmountPaid
	}
	st.TotalDue = core.RoundAmount(st.TotalDue)
	st.TotalPaid = core.RoundAmount(st.TotalPaid)
	st.Balance = core.RoundAmount(st.TotalDue - st.TotalPaid)
	return st
}

// Payment is the event payload of a recorded payment.
type Payment struct {
	StudentID int64      `json:"student_id"`
	ParentID  null.Int64 `json:"parent_id"`
	Amount    float64    `json:"amount"`
	Date      core.Date  `json:"date"`
	Balance   float64    `json:"balance"`
}

type QueryFilter struct {
	StudentID       int64
	OutstandingOnly bool
}
