package cooldown_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/cooldown"
	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu    sync.Mutex
	last  map[actions.ID]time.Time
	err   error
	calls int
}

func (s *fakeSource) LastExecuted(context.Context) (map[actions.ID]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[actions.ID]time.Time, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out, nil
}

type testFixture struct {
	source   *fakeSource
	clock    *clock.Fake
	registry *cooldown.Registry
}

func setupTestFixture(t *testing.T, last map[actions.ID]time.Time) *testFixture {
	t.Helper()
	src := &fakeSource{last: last}
	fc := clock.NewFake(t0)
	reg := cooldown.NewRegistry(src, cooldown.WithClock(fc))
	require.NoError(t, reg.Load(context.Background()))
	return &testFixture{source: src, clock: fc, registry: reg}
}

func TestNeverExecuted(t *testing.T) {
	f := setupTestFixture(t, nil)

	for _, id := range actions.IDs() {
		require.True(t, f.registry.CanExecute(id))
		_, blocked := f.registry.Remaining(id)
		require.False(t, blocked)
		require.NoError(t, f.registry.Check(id))
	}
	require.True(t, f.registry.Known())
}

func TestDailyCheckScenario(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.DailyCheck: t0})

	f.clock.Set(t0.Add(time.Minute))
	rem, blocked := f.registry.Remaining(actions.DailyCheck)
	require.True(t, blocked)
	require.Equal(t, 23, rem.Hours)
	require.Equal(t, 59, rem.Minutes)

	f.clock.Set(t0.Add(23*time.Hour + 59*time.Minute))
	require.False(t, f.registry.CanExecute(actions.DailyCheck))
	rem, blocked = f.registry.Remaining(actions.DailyCheck)
	require.True(t, blocked)
	require.Equal(t, 0, rem.Hours)
	require.Equal(t, 1, rem.Minutes)

	// 30s left truncates to 0h 0m but is still blocked
	f.clock.Set(t0.Add(23*time.Hour + 59*time.Minute + 30*time.Second))
	rem, blocked = f.registry.Remaining(actions.DailyCheck)
	require.True(t, blocked)
	require.Equal(t, 0, rem.Minutes)
	require.Equal(t, 30*time.Second, rem.Duration)

	f.clock.Set(t0.Add(24 * time.Hour))
	require.True(t, f.registry.CanExecute(actions.DailyCheck))

	f.clock.Set(t0.Add(24*time.Hour + time.Second))
	require.True(t, f.registry.CanExecute(actions.DailyCheck))
	_, blocked = f.registry.Remaining(actions.DailyCheck)
	require.False(t, blocked)
}

func TestRemainingTruncates(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.Cleanup: t0})

	// 2h 30m 59s left
	f.clock.Set(t0.Add(21*time.Hour + 29*time.Minute + time.Second))
	rem, blocked := f.registry.Remaining(actions.Cleanup)
	require.True(t, blocked)
	require.Equal(t, 2, rem.Hours)
	require.Equal(t, 30, rem.Minutes)
}

func TestCheck_CooldownError(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.Cleanup: t0})
	f.clock.Set(t0.Add(3*time.Hour + 15*time.Minute))

	err := f.registry.Check(actions.Cleanup)
	require.ErrorIs(t, err, adminerrors.ErrCooldownBlocked)

	var cerr *adminerrors.CooldownError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "cleanup", cerr.Action)
	require.Equal(t, "This action was executed recently. Please wait 20h 45m before running again.", cerr.Error())
}

func TestRecordSuccess_Idempotent(t *testing.T) {
	once := setupTestFixture(t, nil)
	twice := setupTestFixture(t, nil)

	executed := t0.Add(-time.Hour)
	once.registry.RecordSuccess(actions.MonthlyDeduction, executed)
	twice.registry.RecordSuccess(actions.MonthlyDeduction, executed)
	twice.registry.RecordSuccess(actions.MonthlyDeduction, executed)

	for _, at := range []time.Duration{0, 22 * time.Hour, 23*time.Hour + 30*time.Minute, 24 * time.Hour} {
		once.clock.Set(t0.Add(at))
		twice.clock.Set(t0.Add(at))
		require.Equal(t, once.registry.CanExecute(actions.MonthlyDeduction), twice.registry.CanExecute(actions.MonthlyDeduction))
		r1, b1 := once.registry.Remaining(actions.MonthlyDeduction)
		r2, b2 := twice.registry.Remaining(actions.MonthlyDeduction)
		require.Equal(t, b1, b2)
		require.Equal(t, r1, r2)
	}
}

func TestRecordSuccess_KeepsNewest(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.registry.RecordSuccess(actions.Cleanup, t0)
	f.registry.RecordSuccess(actions.Cleanup, t0.Add(-2*time.Hour))

	at, ok := f.registry.LastExecuted(actions.Cleanup)
	require.True(t, ok)
	require.True(t, at.Equal(t0))
}

func TestRunAllIsIndependent(t *testing.T) {
	f := setupTestFixture(t, nil)

	f.registry.RecordSuccess(actions.DailyCheck, t0)
	require.False(t, f.registry.CanExecute(actions.DailyCheck))
	require.True(t, f.registry.CanExecute(actions.RunAll))

	f.registry.RecordSuccess(actions.RunAll, t0)
	require.False(t, f.registry.CanExecute(actions.RunAll))
	require.True(t, f.registry.CanExecute(actions.Cleanup))
	require.True(t, f.registry.CanExecute(actions.MonthlyDeduction))
}

func TestLoad_ReplacesWholesale(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.Cleanup: t0})
	f.registry.RecordSuccess(actions.DailyCheck, t0)

	f.source.mu.Lock()
	f.source.last = map[actions.ID]time.Time{actions.MonthlyDeduction: t0}
	f.source.mu.Unlock()
	require.NoError(t, f.registry.Load(context.Background()))

	require.True(t, f.registry.CanExecute(actions.Cleanup))
	require.True(t, f.registry.CanExecute(actions.DailyCheck))
	require.False(t, f.registry.CanExecute(actions.MonthlyDeduction))
}

// gatedSource blocks LastExecuted until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	last    map[actions.ID]time.Time
	err     error
}

func newGatedSource(last map[actions.ID]time.Time, err error) *gatedSource {
	return &gatedSource{started: make(chan struct{}, 1), release: make(chan struct{}), last: last, err: err}
}

func (s *gatedSource) LastExecuted(ctx context.Context) (map[actions.ID]time.Time, error) {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.last, s.err
}

func TestLoad_KeepsSuccessRecordedWhileInFlight(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "load succeeds"},
		{name: "load fails", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newGatedSource(map[actions.ID]time.Time{}, tt.err)
			reg := cooldown.NewRegistry(src, cooldown.WithClock(clock.NewFake(t0)))

			done := make(chan error, 1)
			go func() { done <- reg.Load(context.Background()) }()
			<-src.started

			reg.RecordSuccess(actions.DailyCheck, t0)
			close(src.release)
			err := <-done
			if tt.err != nil {
				require.ErrorIs(t, err, adminerrors.ErrRegistryNotLoaded)
			} else {
				require.NoError(t, err)
			}

			require.False(t, reg.CanExecute(actions.DailyCheck))
			require.True(t, reg.CanExecute(actions.Cleanup))
		})
	}
}

func TestLoad_LoadedInstantWinsWhenNewer(t *testing.T) {
	src := newGatedSource(map[actions.ID]time.Time{actions.DailyCheck: t0.Add(time.Minute)}, nil)
	reg := cooldown.NewRegistry(src, cooldown.WithClock(clock.NewFake(t0.Add(time.Minute))))

	done := make(chan error, 1)
	go func() { done <- reg.Load(context.Background()) }()
	<-src.started
	reg.RecordSuccess(actions.DailyCheck, t0)
	close(src.release)
	require.NoError(t, <-done)

	at, ok := reg.LastExecuted(actions.DailyCheck)
	require.True(t, ok)
	require.True(t, at.Equal(t0.Add(time.Minute)))
}

func TestLoad_OlderLoadFinishingLastIsDiscarded(t *testing.T) {
	src := &sequencedSource{gates: []*gatedSource{
		newGatedSource(map[actions.ID]time.Time{}, nil),
		newGatedSource(map[actions.ID]time.Time{actions.Cleanup: t0}, nil),
	}}
	reg := cooldown.NewRegistry(src, cooldown.WithClock(clock.NewFake(t0)))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- reg.Load(ctx) }()
	<-src.gates[0].started

	second := make(chan error, 1)
	go func() { second <- reg.Load(ctx) }()
	<-src.gates[1].started

	close(src.gates[1].release)
	require.NoError(t, <-second)
	close(src.gates[0].release)
	require.NoError(t, <-first)

	require.False(t, reg.CanExecute(actions.Cleanup))
	require.False(t, reg.Loading())
}

// sequencedSource hands each LastExecuted call to the next gate.
type sequencedSource struct {
	mu    sync.Mutex
	next  int
	gates []*gatedSource
}

func (s *sequencedSource) LastExecuted(ctx context.Context) (map[actions.ID]time.Time, error) {
	s.mu.Lock()
	g := s.gates[s.next]
	s.next++
	s.mu.Unlock()
	return g.LastExecuted(ctx)
}

func TestLoad_FailureDegradesToUnknown(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.Cleanup: t0})
	require.False(t, f.registry.CanExecute(actions.Cleanup))

	f.source.mu.Lock()
	f.source.err = errors.New("connection refused")
	f.source.mu.Unlock()

	err := f.registry.Load(context.Background())
	require.ErrorIs(t, err, adminerrors.ErrRegistryNotLoaded)
	require.True(t, f.registry.Unknown())
	require.False(t, f.registry.Known())
	require.EqualError(t, f.registry.LoadErr(), "connection refused")
	_, ok := f.registry.LastExecuted(actions.Cleanup)
	require.False(t, ok)
}

func TestFutureLastExecutedClamps(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.Cleanup: t0.Add(2 * time.Hour)})

	rem, blocked := f.registry.Remaining(actions.Cleanup)
	require.True(t, blocked)
	require.Equal(t, 24*time.Hour, rem.Duration)
	require.Equal(t, 24, rem.Hours)
}

func TestSnapshot(t *testing.T) {
	f := setupTestFixture(t, map[actions.ID]time.Time{actions.RunAll: t0.Add(-time.Hour)})

	snap := f.registry.Snapshot()
	require.Len(t, snap, 4)
	for _, st := range snap {
		if st.ID == actions.RunAll {
			require.False(t, st.CanExecute)
			require.NotNil(t, st.Remaining)
			require.Equal(t, 23, st.Remaining.Hours)
			require.NotNil(t, st.LastExecuted)
			continue
		}
		require.True(t, st.CanExecute)
		require.Nil(t, st.Remaining)
		require.Nil(t, st.LastExecuted)
	}
}
