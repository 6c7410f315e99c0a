package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/internal/utils"
)

const allUsersPath = "/api/users/all-users"

var _ accounts.Backend = (*Client)(nil)

// ListUsers accepts either a bare array or {users:[...]}.
func (c *Client) ListUsers(ctx context.Context) ([]accounts.Account, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, allUsersPath, nil, &raw); err != nil {
		return nil, err
	}

	var list []wireUser
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Users []wireUser `json:"users"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, errors.Wrap(err, "[Client.ListUsers] decode")
		}
		list = wrapped.Users
	}

	out := make([]accounts.Account, 0, len(list))
	for _, w := range list {
		out = append(out, w.account())
	}
	return out, nil
}

type statusReq struct {
	Status     accounts.Status `json:"status"`
	PauseStart *time.Time      `json:"pause_start"`
	BlockDate  *time.Time      `json:"block_date"`
}

type userResp struct {
	envelope
	User json.RawMessage `json:"user"`
}

// echo decodes the returned user and records which keys it carried.
func (r userResp) echo() (*accounts.Echo, error) {
	if len(r.User) == 0 || string(r.User) == "null" {
		return nil, nil
	}
	var w wireUser
	if err := json.Unmarshal(r.User, &w); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(r.User, &keys); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	fields := make(map[string]bool, len(keys))
	for k := range keys {
		fields[k] = true
	}
	return &accounts.Echo{Account: w.account(), Fields: fields}, nil
}

func userPath(format, accountID string) string {
	return fmt.Sprintf(format, url.PathEscape(accountID))
}

func (c *Client) UpdateStatus(ctx context.Context, accountID string, change accounts.StatusChange) (*accounts.Echo, error) {
	path := userPath("/api/admin/users/%s/status", accountID)
	req := statusReq{Status: change.Status, PauseStart: utcPtr(change.PauseStart), BlockDate: utcPtr(change.BlockDate)}

	var out userResp
	if err := c.doJSON(ctx, http.MethodPut, path, req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected(http.MethodPut, path, out.envelope, "Error updating status")
	}
	echo, err := out.echo()
	return echo, errors.Wrap(err, "[Client.UpdateStatus]")
}

func (c *Client) UpdateTrust(ctx context.Context, accountID string, trust bool) (*accounts.Echo, error) {
	path := userPath("/api/users/%s/trust", accountID)

	var out userResp
	if err := c.doJSON(ctx, http.MethodPut, path, map[string]bool{"trust": trust}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejected(http.MethodPut, path, out.envelope, "Failed to update trust status")
	}
	echo, err := out.echo()
	return echo, errors.Wrap(err, "[Client.UpdateTrust]")
}

func (c *Client) UpdateWallet(ctx context.Context, accountID string, coin float64) error {
	path := userPath("/api/admin/users/%s/wallet", accountID)
	return c.doJSON(ctx, http.MethodPut, path, map[string]float64{"coin": coin}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, accountID string) error {
	return c.doJSON(ctx, http.MethodDelete, userPath("/api/admin/users/%s", accountID), nil, nil)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return utils.Ptr(t.UTC())
}
