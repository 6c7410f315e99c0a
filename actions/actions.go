// Package actions enumerates the batch maintenance jobs an operator may trigger.
// The set is closed: anything outside it is rejected before a backend call.
package actions

import (
	"strings"

	"github.com/pkg/errors"

	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

// ID is the canonical identifier of a batch job.
type ID string

const (
	Cleanup          ID = "cleanup"
	DailyCheck       ID = "daily-check"
	MonthlyDeduction ID = "monthly-deduction"
	RunAll           ID = "run-all"
)

// Job describes how an action is presented and which backend call triggers it.
type Job struct {
	ID          ID
	Label       string
	Description string
	BackendName string // key in the last-executed mapping
	Endpoint    string // path segment under /api/admin/
}

var catalog = []Job{
	{
		ID:          Cleanup,
		Label:       "Manual Cleanup",
		Description: "Delete quiz history older than 45 days",
		BackendName: "manual_cleanup",
		Endpoint:    "manual-cleanup",
	},
	{
		ID:          DailyCheck,
		Label:       "Manual Daily Check",
		Description: "Deduct 1 from day_count for all users",
		BackendName: "manual_daily_check",
		Endpoint:    "manual-daily-check",
	},
	{
		ID:          MonthlyDeduction,
		Label:       "Manual Monthly Deduction",
		Description: "Process monthly maintenance fees",
		BackendName: "manual_monthly_deduction",
		Endpoint:    "manual-monthly-deduction",
	},
	{
		ID:          RunAll,
		Label:       "Run All Cron Jobs",
		Description: "Execute all jobs at once",
		BackendName: "run_all_cron_jobs",
		Endpoint:    "run-all",
	},
}

// All returns the catalog in display order.
func All() []Job {
	jobs := make([]Job, len(catalog))
	copy(jobs, catalog)
	return jobs
}

// IDs returns every known identifier in display order.
func IDs() []ID {
	ids := make([]ID, 0, len(catalog))
	for _, j := range catalog {
		ids = append(ids, j.ID)
	}
	return ids
}

// Parse validates s against the closed set.
func Parse(s string) (ID, error) {
	id := ID(strings.TrimSpace(s))
	if _, ok := Lookup(id); !ok {
		return "", errors.Wrapf(adminerrors.ErrUnknownAction, "%q", s)
	}
	return id, nil
}

func Lookup(id ID) (Job, bool) {
	for _, j := range catalog {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

// FromBackendName maps a backend last-executed key back to its identifier.
func FromBackendName(name string) (ID, bool) {
	for _, j := range catalog {
		if j.BackendName == name {
			return j.ID, true
		}
	}
	return "", false
}

func (id ID) Valid() bool {
	_, ok := Lookup(id)
	return ok
}

func (id ID) String() string { return string(id) }
