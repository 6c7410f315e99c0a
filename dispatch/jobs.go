package dispatch

import (
	"time"

	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/cooldown"
)

// JobStatus is the per-job view shown to the operator.
type JobStatus struct {
	ID           actions.ID          `json:"id"`
	Label        string              `json:"label"`
	Description  string              `json:"description"`
	CanExecute   bool                `json:"can_execute"`
	Remaining    *cooldown.Remaining `json:"remaining,omitempty"`
	LastExecuted *time.Time          `json:"last_executed,omitempty"`
	InFlight     bool                `json:"in_flight"`
	Loading      bool                `json:"loading"`
	Unknown      bool                `json:"unknown"`
	LastOutcome  *Outcome            `json:"last_outcome,omitempty"`
}

// Jobs returns the status of every catalog job.
func (d *Dispatcher) Jobs() []JobStatus {
	snapshot := d.registry.Snapshot()
	loading := d.registry.Loading()
	unknown := d.registry.Unknown()

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]JobStatus, 0, len(snapshot))
	for _, st := range snapshot {
		job, _ := actions.Lookup(st.ID)
		js := JobStatus{
			ID:           st.ID,
			Label:        job.Label,
			Description:  job.Description,
			CanExecute:   st.CanExecute && !d.inFlight[st.ID],
			Remaining:    st.Remaining,
			LastExecuted: st.LastExecuted,
			InFlight:     d.inFlight[st.ID],
			Loading:      loading,
			Unknown:      unknown,
		}
		if o, ok := d.last[st.ID]; ok {
			o := o
			js.LastOutcome = &o
		}
		out = append(out, js)
	}
	return out
}
