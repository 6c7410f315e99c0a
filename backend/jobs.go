package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/internal/utils"
)

const (
	lastExecutedPath = "/api/admin/last-executed"
	adminPathPrefix  = "/api/admin/"
)

type lastExecutedResp struct {
	envelope
	LastExecuted map[string]utils.FlexTime `json:"lastExecuted"`
}

// LastExecuted returns the last successful run of every job the backend has a
// record for. Unknown keys and null instants are skipped.
func (c *Client) LastExecuted(ctx context.Context) (map[actions.ID]time.Time, error) {
	var out lastExecutedResp
	if err := c.doJSON(ctx, http.MethodGet, lastExecutedPath, nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected(http.MethodGet, lastExecutedPath, out.envelope, "failed to load last executed times")
	}

	result := make(map[actions.ID]time.Time, len(out.LastExecuted))
	for name, at := range out.LastExecuted {
		id, ok := actions.FromBackendName(name)
		if !ok || at.IsZero() {
			continue
		}
		result[id] = at.Time
	}
	return result, nil
}

// Trigger runs one batch job and returns the backend's success message.
func (c *Client) Trigger(ctx context.Context, job actions.Job) (string, error) {
	path := adminPathPrefix + job.Endpoint
	var out envelope
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", rejected(http.MethodPost, path, out, job.Label+" failed")
	}
	return out.Message, nil
}
