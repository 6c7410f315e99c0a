package actions_test

import (
	"testing"

	"github.com/jrsteele09/quiz-admin/actions"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, s := range []string{"cleanup", "daily-check", "monthly-deduction", "run-all", " run-all "} {
		id, err := actions.Parse(s)
		require.NoError(t, err, s)
		require.True(t, id.Valid())
	}

	for _, s := range []string{"", "Cleanup", "manual_cleanup", "purge"} {
		_, err := actions.Parse(s)
		require.ErrorIs(t, err, adminerrors.ErrUnknownAction, s)
	}
}

func TestCatalog(t *testing.T) {
	jobs := actions.All()
	require.Len(t, jobs, 4)
	require.Equal(t, []actions.ID{actions.Cleanup, actions.DailyCheck, actions.MonthlyDeduction, actions.RunAll}, actions.IDs())

	job, ok := actions.Lookup(actions.RunAll)
	require.True(t, ok)
	require.Equal(t, "run_all_cron_jobs", job.BackendName)
	require.Equal(t, "run-all", job.Endpoint)

	id, ok := actions.FromBackendName("manual_daily_check")
	require.True(t, ok)
	require.Equal(t, actions.DailyCheck, id)

	_, ok = actions.FromBackendName("daily-check")
	require.False(t, ok)

	// callers cannot mutate the catalog through All
	jobs[0].Label = "changed"
	again, _ := actions.Lookup(actions.Cleanup)
	require.Equal(t, "Manual Cleanup", again.Label)
}
