package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/backend/fakebackend"
	"github.com/jrsteele09/quiz-admin/cooldown"
	"github.com/jrsteele09/quiz-admin/dispatch"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/internal/obs"
	"github.com/jrsteele09/quiz-admin/payments"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testFixture struct {
	backend    *fakebackend.Backend
	clock      *clock.Fake
	registry   *cooldown.Registry
	machine    *accounts.Machine
	ledger     *payments.Ledger
	metrics    *obs.Metrics
	dispatcher *dispatch.Dispatcher
}

func setupTestFixture(t *testing.T, reconcileDelay time.Duration) *testFixture {
	t.Helper()
	fc := clock.NewFake(t0)
	fb := fakebackend.New(fc)
	fb.SeedUsers(accounts.Account{ID: "1", Status: accounts.StatusActive})
	fb.SeedPayments(payments.Payment{ID: "p1", Amount: 10})

	reg := cooldown.NewRegistry(fb, cooldown.WithClock(fc))
	require.NoError(t, reg.Load(context.Background()))

	machine := accounts.NewMachine(fb, accounts.WithClock(fc))
	require.NoError(t, machine.Refresh(context.Background()))
	ledger := payments.NewLedger(fb)
	require.NoError(t, ledger.Load(context.Background()))

	metrics := obs.NewMetrics(prometheus.NewRegistry())
	d, err := dispatch.New(fb, reg,
		dispatch.WithClock(fc),
		dispatch.WithReconcileDelay(reconcileDelay),
		dispatch.WithAccounts(machine),
		dispatch.WithPayments(ledger),
		dispatch.WithMetrics(metrics),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return &testFixture{backend: fb, clock: fc, registry: reg, machine: machine, ledger: ledger, metrics: metrics, dispatcher: d}
}

func TestNew_Validation(t *testing.T) {
	_, err := dispatch.New(nil, cooldown.NewRegistry(fakebackend.New(nil)))
	require.Error(t, err)
	_, err = dispatch.New(fakebackend.New(nil), nil)
	require.Error(t, err)
}

func TestDispatch_UnknownAction(t *testing.T) {
	f := setupTestFixture(t, time.Hour)

	_, err := f.dispatcher.Dispatch(context.Background(), "purge-everything")
	require.ErrorIs(t, err, adminerrors.ErrUnknownAction)
	require.Equal(t, 0, f.backend.Calls(fakebackend.OpTrigger))
}

func TestDispatch_Success(t *testing.T) {
	f := setupTestFixture(t, time.Hour)

	out, err := f.dispatcher.Dispatch(context.Background(), "daily-check")
	require.NoError(t, err)
	require.Equal(t, dispatch.Succeeded, out.State)
	require.Equal(t, "Manual Daily Check completed successfully", out.Message)

	// recorded optimistically, before any reload
	require.False(t, f.registry.CanExecute(actions.DailyCheck))
	require.True(t, f.registry.CanExecute(actions.RunAll))
	require.Equal(t, 1, f.dispatcher.PendingReconciles())
	require.Equal(t, dispatch.Idle, f.dispatcher.State(actions.DailyCheck))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DispatchTotal.WithLabelValues("daily-check", "succeeded")))
}

func TestDispatch_BlockedByCooldown(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, "cleanup")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	out, err := f.dispatcher.Dispatch(ctx, "cleanup")
	require.ErrorIs(t, err, adminerrors.ErrCooldownBlocked)
	require.Equal(t, dispatch.Blocked, out.State)
	require.Equal(t, "This action was executed recently. Please wait 23h 30m before running again.", out.Message)
	require.Equal(t, &cooldown.Remaining{Hours: 23, Minutes: 30, Duration: 23*time.Hour + 30*time.Minute}, out.Remaining)
	require.Equal(t, 1, f.backend.Calls(fakebackend.OpTrigger))

	last, ok := f.dispatcher.LastOutcome(actions.Cleanup)
	require.True(t, ok)
	require.Equal(t, dispatch.Blocked, last.State)

	f.clock.Advance(23*time.Hour + 30*time.Minute)
	out, err = f.dispatcher.Dispatch(ctx, "cleanup")
	require.NoError(t, err)
	require.Equal(t, dispatch.Succeeded, out.State)
}

func TestDispatch_FailureIsVerbatimAndLeavesCooldown(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	f.backend.Fail(fakebackend.OpTrigger, errors.New("Network error - check if backend is running"))

	out, err := f.dispatcher.Dispatch(context.Background(), "monthly-deduction")
	require.ErrorIs(t, err, adminerrors.ErrDispatchFailed)
	require.EqualError(t, err, "Network error - check if backend is running")
	require.Equal(t, dispatch.Failed, out.State)
	require.Equal(t, "Network error - check if backend is running", out.Message)

	require.True(t, f.registry.CanExecute(actions.MonthlyDeduction))
	require.Equal(t, 0, f.dispatcher.PendingReconciles())
	require.False(t, f.dispatcher.InFlight(actions.MonthlyDeduction))

	// retry allowed once the backend recovers
	f.backend.Fail(fakebackend.OpTrigger, nil)
	_, err = f.dispatcher.Dispatch(context.Background(), "monthly-deduction")
	require.NoError(t, err)
}

func TestDispatch_AtMostOneInFlight(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	release := f.backend.Hold()

	done := make(chan error, 1)
	go func() {
		_, err := f.dispatcher.Dispatch(context.Background(), "run-all")
		done <- err
	}()

	require.Eventually(t, func() bool { return f.dispatcher.InFlight(actions.RunAll) }, time.Second, time.Millisecond)
	require.Equal(t, dispatch.Dispatching, f.dispatcher.State(actions.RunAll))

	for i := 0; i < 5; i++ {
		_, err := f.dispatcher.Dispatch(context.Background(), "run-all")
		require.ErrorIs(t, err, adminerrors.ErrActionInFlight)
	}

	for _, j := range f.dispatcher.Jobs() {
		if j.ID == actions.RunAll {
			require.True(t, j.InFlight)
			require.False(t, j.CanExecute)
		}
	}

	release()
	require.NoError(t, <-done)
	require.Equal(t, 1, f.backend.Calls(fakebackend.OpTrigger))
	require.False(t, f.dispatcher.InFlight(actions.RunAll))
}

func TestDispatch_CallerCancelDoesNotAbortTrigger(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	release := f.backend.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.dispatcher.Dispatch(ctx, "cleanup")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.dispatcher.InFlight(actions.Cleanup) }, time.Second, time.Millisecond)

	cancel()
	release()
	require.NoError(t, <-done)
	out, ok := f.dispatcher.LastOutcome(actions.Cleanup)
	require.True(t, ok)
	require.Equal(t, dispatch.Succeeded, out.State)
	require.False(t, f.registry.CanExecute(actions.Cleanup))
}

func TestDispatch_DifferentActionsConcurrently(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	release := f.backend.Hold()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{"cleanup", "daily-check"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.dispatcher.Dispatch(context.Background(), id)
			errs <- err
		}(id)
	}

	require.Eventually(t, func() bool {
		return f.dispatcher.InFlight(actions.Cleanup) && f.dispatcher.InFlight(actions.DailyCheck)
	}, time.Second, time.Millisecond)

	release()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestDispatch_ReconcileReloads(t *testing.T) {
	f := setupTestFixture(t, 10*time.Millisecond)
	loadsBefore := f.backend.Calls(fakebackend.OpLastExecuted)

	_, err := f.dispatcher.Dispatch(context.Background(), "cleanup")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.backend.Calls(fakebackend.OpLastExecuted) == loadsBefore+1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 0, f.dispatcher.PendingReconciles())

	at, ok := f.registry.LastExecuted(actions.Cleanup)
	require.True(t, ok)
	require.True(t, at.Equal(t0))
}

func TestDispatch_NewerSuccessReplacesPendingReconcile(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	ctx := context.Background()

	_, err := f.dispatcher.Dispatch(ctx, "cleanup")
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	_, err = f.dispatcher.Dispatch(ctx, "cleanup")
	require.NoError(t, err)

	require.Equal(t, 1, f.dispatcher.PendingReconciles())
}

func TestClose_CancelsReconcile(t *testing.T) {
	f := setupTestFixture(t, 50*time.Millisecond)
	loadsBefore := f.backend.Calls(fakebackend.OpLastExecuted)

	_, err := f.dispatcher.Dispatch(context.Background(), "cleanup")
	require.NoError(t, err)
	require.Equal(t, 1, f.dispatcher.PendingReconciles())

	require.NoError(t, f.dispatcher.Close())
	require.Equal(t, 0, f.dispatcher.PendingReconciles())

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, loadsBefore, f.backend.Calls(fakebackend.OpLastExecuted))

	_, err = f.dispatcher.Dispatch(context.Background(), "daily-check")
	require.ErrorIs(t, err, dispatch.ErrClosed)
}

func TestDispatch_UnknownRegistryStillDispatches(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	f.backend.Fail(fakebackend.OpLastExecuted, errors.New("offline"))
	require.Error(t, f.dispatcher.LoadCooldowns(context.Background()))

	out, err := f.dispatcher.Dispatch(context.Background(), "cleanup")
	require.NoError(t, err)
	require.Equal(t, dispatch.Succeeded, out.State)

	for _, j := range f.dispatcher.Jobs() {
		require.True(t, j.Unknown)
	}
}

func TestJobs(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	f.backend.SetLastExecuted(actions.MonthlyDeduction, t0.Add(-2*time.Hour))
	require.NoError(t, f.dispatcher.LoadCooldowns(context.Background()))

	jobs := f.dispatcher.Jobs()
	require.Len(t, jobs, 4)
	require.Equal(t, actions.Cleanup, jobs[0].ID)
	require.Equal(t, "Manual Cleanup", jobs[0].Label)
	require.True(t, jobs[0].CanExecute)

	require.Equal(t, actions.MonthlyDeduction, jobs[2].ID)
	require.False(t, jobs[2].CanExecute)
	require.Equal(t, 22, jobs[2].Remaining.Hours)
	require.NotNil(t, jobs[2].LastExecuted)
	require.False(t, jobs[2].Unknown)
}

func TestCommits(t *testing.T) {
	f := setupTestFixture(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, f.machine.StageStatus("1", accounts.StatusBlocked))
	rec, err := f.dispatcher.CommitStatus(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, accounts.StatusBlocked, rec.Status)

	require.NoError(t, f.machine.StageTrust("1", true))
	rec, err = f.dispatcher.CommitTrust(ctx, "1")
	require.NoError(t, err)
	require.True(t, rec.Trust)

	rec, err = f.dispatcher.SetWallet(ctx, "1", 12)
	require.NoError(t, err)
	require.Equal(t, 12.0, rec.Coin)

	p, err := f.dispatcher.SetDue(ctx, "p1", true)
	require.NoError(t, err)
	require.True(t, p.Due)

	f.backend.Fail(fakebackend.OpDeleteUser, errors.New("forbidden"))
	err = f.dispatcher.DeleteAccount(ctx, "1")
	require.ErrorIs(t, err, adminerrors.ErrCommitFailed)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommitTotal.WithLabelValues("delete", "fail")))

	f.backend.Fail(fakebackend.OpDeleteUser, nil)
	require.NoError(t, f.dispatcher.DeleteAccount(ctx, "1"))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommitTotal.WithLabelValues("status", "success")))
}

func TestCommits_WithoutMachine(t *testing.T) {
	fb := fakebackend.New(nil)
	d, err := dispatch.New(fb, cooldown.NewRegistry(fb))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.CommitStatus(context.Background(), "1")
	require.Error(t, err)
	_, err = d.SetDue(context.Background(), "p1", true)
	require.Error(t, err)
}
