// Package kvrepo persists sessions in the local key-value store so the
// terminal console keeps its login across invocations.
package kvrepo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/internal/kvstore"
	"github.com/jrsteele09/quiz-admin/sessions"
)

const namespace = "sessions"

// currentKey holds the id of the most recent terminal-console session.
const currentKey = "_current"

var _ sessions.Repo = (*Repo)(nil)

type Repo struct {
	store *kvstore.Store
}

func New(store *kvstore.Store) *Repo {
	return &Repo{store: store}
}

func (r *Repo) Upsert(ctx context.Context, session *sessions.Session) error {
	return errors.Wrap(r.store.PutJSON(ctx, namespace, session.ID, session), "[kvrepo.Upsert]")
}

func (r *Repo) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	var s sessions.Session
	err := r.store.GetJSON(ctx, namespace, sessionID, &s)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[kvrepo.Get]")
	}
	return &s, nil
}

func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	return errors.Wrap(r.store.Delete(ctx, namespace, sessionID), "[kvrepo.Delete]")
}

// SetCurrent remembers token as the active terminal-console session token.
func (r *Repo) SetCurrent(ctx context.Context, token string) error {
	return errors.Wrap(r.store.Put(ctx, namespace+".current", currentKey, []byte(token)), "[kvrepo.SetCurrent]")
}

// Current returns the remembered token, or "" if none.
func (r *Repo) Current(ctx context.Context) (string, error) {
	raw, err := r.store.Get(ctx, namespace+".current", currentKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "[kvrepo.Current]")
	}
	return string(raw), nil
}

func (r *Repo) ClearCurrent(ctx context.Context) error {
	return errors.Wrap(r.store.Delete(ctx, namespace+".current", currentKey), "[kvrepo.ClearCurrent]")
}
