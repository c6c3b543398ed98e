package fee

import (
	"context"
	"math"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

type (
	Repository interface {
		CreateFee(ctx context.Context, f Fee) (Fee, error)
		UpdateFee(ctx context.Context, f Fee) (Fee, error)
		// QueryFees returns fees ordered by due date then id, oldest first.
		QueryFees(ctx context.Context, filter QueryFilter) ([]Fee, error)
	}

	Directory interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
		GetStudent(ctx context.Context, id int64) (user.Student, error)
	}

	Service struct {
		db      core.Transactor
		repo    Repository
		users   Directory
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	db core.Transactor,
	repo Repository,
	users Directory,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{db: db, repo: repo, users: users, mailSvc: mailSvc, events: events, logger: logger}
}

func (svc *Service) Create(ctx context.Context, nf NewFee) (Fee, error) {
	due, err := core.ParseDate(nf.DueDate)
	if err != nil {
		return Fee{}, core.NewDateError("due_date")
	}
	if nf.AmountDue == nil || *nf.AmountDue < 0 {
		return Fee{}, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "amount_due", Error: ErrNegativeAmount.Error()})
	}

	var f Fee
	err = svc.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := svc.users.GetStudent(ctx, nf.StudentID); err != nil {
			return err
		}
		now := time.Now().UTC()
		var err error
		f, err = svc.repo.CreateFee(ctx, Fee{
			StudentID:   nf.StudentID,
			Description: nf.Description,
			AmountDue:   core.RoundAmount(*nf.AmountDue),
			DueDate:     due,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return errors.Wrap(err, "inserting fee")
	})
	if err != nil {
		return Fee{}, err
	}
	return f, nil
}

// RecordPayment applies amount to the student's outstanding fees, oldest due date first.
// Whatever is left is kept as a prepaid row. payerID is the paying parent, or 0 to bill the student's guardian.
func (svc *Service) RecordPayment(ctx context.Context, payerID int64, np NewPayment) (Statement, error) {
	if np.Amount == nil || *np.Amount < 0 {
		return Statement{}, core.NewValidationError(ErrNegativeAmount, core.FieldError{Field: "amount", Error: ErrNegativeAmount.Error()})
	}
	amount := core.RoundAmount(*np.Amount)
	date := core.Today()
	if np.Date != "" {
		var err error
		if date, err = core.ParseDate(np.Date); err != nil {
			return Statement{}, core.NewDateError("date")
		}
	}

	var (
		std   user.Student
		payer null.Int64
		st    Statement
	)
	err := svc.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if std, err = svc.users.GetStudent(ctx, np.StudentID); err != nil {
			return err
		}
		payer = std.ParentID
		if payerID != 0 {
			payer = null.Int64From(payerID)
		}

		outstanding, err := svc.repo.QueryFees(ctx, QueryFilter{StudentID: np.StudentID, OutstandingOnly: true})
		if err != nil {
			return errors.Wrap(err, "querying outstanding fees")
		}
		now := time.Now().UTC()
		remaining := amount
		for _, f := range outstanding {
			if remaining <= 0 {
				break
			}
			applied := math.Min(remaining, f.Outstanding())
			f.AmountPaid = core.RoundAmount(f.AmountPaid + applied)
			f.ParentID = payer
			f.UpdatedAt = now
			if f.IsSettled() {
				f.PaidOn = date
			}
			if _, err := svc.repo.UpdateFee(ctx, f); err != nil {
				return errors.Wrap(err, "updating fee")
			}
			remaining = core.RoundAmount(remaining - applied)
		}
		if remaining > 0 {
			_, err := svc.repo.CreateFee(ctx, Fee{
				StudentID:   np.StudentID,
				ParentID:    payer,
				Description: "prepayment",
				AmountPaid:  remaining,
				DueDate:     date,
				PaidOn:      date,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return errors.Wrap(err, "inserting prepayment")
			}
		}

		fees, err := svc.repo.QueryFees(ctx, QueryFilter{StudentID: np.StudentID})
		if err != nil {
			return errors.Wrap(err, "querying fees")
		}
		st = NewStatement(np.StudentID, fees)
		return nil
	})
	if err != nil {
		return Statement{}, err
	}

	pmt := Payment{StudentID: np.StudentID, ParentID: payer, Amount: amount, Date: date, Balance: st.Balance}
	if svc.events != nil {
		if err := svc.events.Publish(ctx, core.NewEvent(core.EventPaymentRecorded, pmt)); err != nil {
			svc.logger.Error("publishing events", err)
		}
	}
	svc.sendReceipt(ctx, std, pmt)
	return st, nil
}

func (svc *Service) Statement(ctx context.Context, studentID int64) (Statement, error) {
	if _, err := svc.users.GetStudent(ctx, studentID); err != nil {
		return Statement{}, err
	}
	fees, err := svc.repo.QueryFees(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return Statement{}, err
	}
	return NewStatement(studentID, fees), nil
}

func (svc *Service) sendReceipt(ctx context.Context, std user.Student, pmt Payment) {
	if svc.mailSvc == nil || !pmt.ParentID.Valid {
		return
	}
	parent, err := svc.users.GetByID(ctx, pmt.ParentID.Int64)
	if err != nil {
		svc.logger.Error("getting payer", err)
		return
	}
	if parent.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: parent.Name, Address: parent.Email}},
		Subject:      "Payment Receipt",
		TemplateName: "payment_receipt",
		TemplateData: map[string]interface{}{
			"ParentName":  parent.DisplayName(),
			"Amount":      pmt.Amount,
			"Date":        pmt.Date.String(),
			"StudentName": std.DisplayName(),
			"Balance":     pmt.Balance,
		},
	})
}
