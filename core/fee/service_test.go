package fee_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/user"
	"github.com/edutrack/backend/tests"
)

func amount(f float64) *float64 { return &f }

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	kid := testutil.EnrollStudent(t, env.UserSvc, "Kid", "5A", 0)

	_, err := env.FeeSvc.Create(ctx, fee.NewFee{StudentID: 999, AmountDue: amount(10), DueDate: "2024-01-01"})
	assert.Equal(t, user.ErrStudentNotFound, errors.Cause(err))

	_, err = env.FeeSvc.Create(ctx, fee.NewFee{StudentID: kid.ID, AmountDue: amount(10), DueDate: "2024/01/01"})
	assert.True(t, errors.Is(err, core.ErrInvalidDate))

	f, err := env.FeeSvc.Create(ctx, fee.NewFee{StudentID: kid.ID, Description: "books", AmountDue: amount(10.567), DueDate: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, 10.57, f.AmountDue)
	assert.Equal(t, 10.57, f.Outstanding())
	assert.False(t, f.IsSettled())
	assert.Equal(t, 1, env.DB.Count("fees"))
}

func TestService_RecordPayment(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	bob := testutil.CreateUser(t, env.UserSvc, "Bob", "bob", "bob@test.cd", "secret1", user.RoleParent)
	kid := testutil.EnrollStudent(t, env.UserSvc, "Kid", "5A", bob.ID)
	testutil.CreateFee(t, env.FeeSvc, kid.ID, "term 2", 100, "2024-02-01")
	testutil.CreateFee(t, env.FeeSvc, kid.ID, "term 1", 50, "2024-01-01")
	env.Events.Reset()
	env.Mail.Reset()

	_, err := env.FeeSvc.RecordPayment(ctx, bob.ID, fee.NewPayment{StudentID: kid.ID, Amount: amount(-1)})
	assert.True(t, errors.Is(err, fee.ErrNegativeAmount))
	_, err = env.FeeSvc.RecordPayment(ctx, bob.ID, fee.NewPayment{StudentID: 999, Amount: amount(1)})
	assert.Equal(t, user.ErrStudentNotFound, errors.Cause(err))

	t.Run("zero payment", func(t *testing.T) {
		st, err := env.FeeSvc.RecordPayment(ctx, bob.ID, fee.NewPayment{StudentID: kid.ID, Amount: amount(0)})
		require.NoError(t, err)
		assert.Equal(t, 150.0, st.Balance)
		assert.Len(t, st.Fees, 2)
	})
	env.Events.Reset()
	env.Mail.Reset()

	t.Run("oldest first", func(t *testing.T) {
		st, err := env.FeeSvc.RecordPayment(ctx, bob.ID, fee.NewPayment{StudentID: kid.ID, Amount: amount(60), Date: "2024-03-05"})
		require.NoError(t, err)
		require.Len(t, st.Fees, 2)

		term1, term2 := st.Fees[0], st.Fees[1]
		assert.Equal(t, "term 1", term1.Description)
		assert.True(t, term1.IsSettled())
		assert.Equal(t, "2024-03-05", term1.PaidOn.String())
		assert.Equal(t, bob.ID, term1.ParentID.Int64)

		assert.Equal(t, 10.0, term2.AmountPaid)
		assert.Equal(t, 90.0, term2.Outstanding())
		assert.True(t, term2.PaidOn.IsZero())

		assert.Equal(t, 150.0, st.TotalDue)
		assert.Equal(t, 60.0, st.TotalPaid)
		assert.Equal(t, 90.0, st.Balance)

		assert.Equal(t, []string{core.EventPaymentRecorded}, env.Events.Names())
		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "bob@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "60.00")
		assert.Contains(t, sent[0].TextContent, "90.00")
	})

	t.Run("remainder is prepaid", func(t *testing.T) {
		// recorded by an admin on behalf of the guardian
		st, err := env.FeeSvc.RecordPayment(ctx, 0, fee.NewPayment{StudentID: kid.ID, Amount: amount(100.004), Date: "2024-03-06"})
		require.NoError(t, err)
		require.Len(t, st.Fees, 3)

		prepaid := st.Fees[2]
		assert.Equal(t, "prepayment", prepaid.Description)
		assert.Equal(t, 0.0, prepaid.AmountDue)
		assert.Equal(t, 10.0, prepaid.AmountPaid)
		assert.Equal(t, bob.ID, prepaid.ParentID.Int64)
		assert.True(t, st.Fees[1].IsSettled())
		assert.Equal(t, -10.0, st.Balance)
	})

	t.Run("statement", func(t *testing.T) {
		st, err := env.FeeSvc.Statement(ctx, kid.ID)
		require.NoError(t, err)
		assert.Len(t, st.Fees, 3)
		assert.Equal(t, -10.0, st.Balance)

		_, err = env.FeeSvc.Statement(ctx, bob.ID)
		assert.Equal(t, user.ErrStudentNotFound, errors.Cause(err))
	})
}

func TestService_RecordPayment_noFees(t *testing.T) {
	env := testutil.NewEnv()
	kid := testutil.EnrollStudent(t, env.UserSvc, "Kid", "5A", 0)

	st, err := env.FeeSvc.RecordPayment(context.Background(), 0, fee.NewPayment{StudentID: kid.ID, Amount: amount(25)})
	require.NoError(t, err)
	require.Len(t, st.Fees, 1)
	assert.False(t, st.Fees[0].ParentID.Valid)
	assert.Equal(t, core.Today(), st.Fees[0].PaidOn)
	assert.Equal(t, -25.0, st.Balance)
	// no guardian, no receipt
	assert.Empty(t, env.Mail.SentMessages())
}
