package payments_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/quiz-admin/backend/fakebackend"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/payments"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *fakebackend.Backend
	ledger  *payments.Ledger
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	fb := fakebackend.New(nil)
	fb.SeedPayments(
		payments.Payment{ID: "p1", Amount: 100, Status: payments.StatusPending},
		payments.Payment{ID: "p2", Amount: 50.5, Status: payments.StatusCompleted, Due: true},
		payments.Payment{ID: "p3", Amount: 10, Status: "rejected"},
	)
	l := payments.NewLedger(fb)
	require.NoError(t, l.Load(context.Background()))
	return &testFixture{backend: fb, ledger: l}
}

func TestStats(t *testing.T) {
	f := setupTestFixture(t)

	require.Equal(t, payments.Stats{Total: 3, Pending: 1, Completed: 1, Due: 1, TotalAmount: 160.5}, f.ledger.Stats())
	require.Equal(t, "p1", f.ledger.List()[0].ID)
}

func TestSetDue(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	p, err := f.ledger.SetDue(ctx, "p1", true)
	require.NoError(t, err)
	require.True(t, p.Due)
	require.Equal(t, 2, f.ledger.Stats().Due)

	_, err = f.ledger.SetDue(ctx, "nope", true)
	require.ErrorIs(t, err, adminerrors.ErrPaymentNotFound)
}

func TestSetDue_FailureKeepsLocalValue(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Fail(fakebackend.OpSetDue, errors.New("db down"))

	_, err := f.ledger.SetDue(context.Background(), "p2", false)
	require.ErrorIs(t, err, adminerrors.ErrCommitFailed)

	p, err := f.ledger.Get("p2")
	require.NoError(t, err)
	require.True(t, p.Due)
}

func TestLoad_Failure(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Fail(fakebackend.OpListPayments, errors.New("offline"))

	require.Error(t, f.ledger.Load(context.Background()))
	require.Len(t, f.ledger.List(), 3)
}
