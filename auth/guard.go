// Package auth gates privileged console operations behind a time-bounded
// operator session.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/quiz-admin/internal/clock"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/internal/obs"
	"github.com/jrsteele09/quiz-admin/sessions"
)

// ExpiredNotice is surfaced once, on the check that observes expiry.
const ExpiredNotice = "Session expired. Please log in again."

const defaultTTL = 15 * time.Minute

// Result is the outcome of a session check.
type Result int

const (
	Missing Result = iota
	Valid
	Expired
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "missing"
	}
}

type Credentials struct {
	Email    string
	Password string
}

// SessionGuard owns the operator session lifecycle: establish on login,
// check on every privileged access, evict on logout or first observed expiry.
type SessionGuard struct {
	repo          sessions.Repo
	operatorEmail string
	passwordHash  string
	ttl           time.Duration
	clock         clock.Clock
	logger        zerolog.Logger
	metrics       *obs.Metrics
}

type SessionGuardOption func(*SessionGuard)

// WithClock sets the time source (primarily for testing)
func WithClock(c clock.Clock) SessionGuardOption {
	return func(g *SessionGuard) {
		g.clock = c
	}
}

func WithTTL(ttl time.Duration) SessionGuardOption {
	return func(g *SessionGuard) {
		g.ttl = ttl
	}
}

func WithLogger(logger zerolog.Logger) SessionGuardOption {
	return func(g *SessionGuard) {
		g.logger = logger
	}
}

func WithMetrics(m *obs.Metrics) SessionGuardOption {
	return func(g *SessionGuard) {
		g.metrics = m
	}
}

// NewSessionGuard creates a guard for the single operator identity.
// passwordHash is a bcrypt hash.
func NewSessionGuard(repo sessions.Repo, operatorEmail, passwordHash string, options ...SessionGuardOption) (*SessionGuard, error) {
	if repo == nil {
		return nil, errors.New("[NewSessionGuard] session repo is required")
	}
	if strings.TrimSpace(operatorEmail) == "" {
		return nil, errors.New("[NewSessionGuard] operator email is required")
	}
	if passwordHash == "" {
		return nil, errors.New("[NewSessionGuard] operator password hash is required")
	}

	g := &SessionGuard{
		repo:          repo,
		operatorEmail: strings.TrimSpace(operatorEmail),
		passwordHash:  passwordHash,
		ttl:           defaultTTL,
		clock:         clock.System{},
		logger:        zerolog.Nop(),
	}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

// Establish checks the credentials against the operator identity and, on
// success, stores a new session issued now. No session is created on failure.
func (g *SessionGuard) Establish(ctx context.Context, creds Credentials) (*sessions.Session, error) {
	if !strings.EqualFold(strings.TrimSpace(creds.Email), g.operatorEmail) ||
		bcrypt.CompareHashAndPassword([]byte(g.passwordHash), []byte(creds.Password)) != nil {
		g.metrics.Login("invalid")
		g.logger.Warn().Str("email", creds.Email).Msg("operator login rejected")
		return nil, adminerrors.ErrInvalidCredentials
	}

	s := sessions.New(g.operatorEmail, g.clock.Now(), g.ttl)
	if err := g.repo.Upsert(ctx, s); err != nil {
		return nil, errors.Wrap(err, "[SessionGuard.Establish] repo.Upsert")
	}

	g.metrics.Login("success")
	g.logger.Info().Str("session_id", s.ID).Time("expires_at", s.ExpiresAt()).Msg("session established")
	return s, nil
}

// Check classifies the session. An expired session is evicted, so only the
// first check after expiry reports Expired; later ones report Missing.
func (g *SessionGuard) Check(ctx context.Context, sessionID string) (Result, *sessions.Session, error) {
	if sessionID == "" {
		g.metrics.SessionCheck(Missing.String())
		return Missing, nil, nil
	}

	s, err := g.repo.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		g.metrics.SessionCheck(Missing.String())
		return Missing, nil, nil
	}
	if err != nil {
		return Missing, nil, errors.Wrap(err, "[SessionGuard.Check] repo.Get")
	}

	if s.IsExpired(g.clock.Now()) {
		if err := g.repo.Delete(ctx, sessionID); err != nil {
			return Expired, nil, errors.Wrap(err, "[SessionGuard.Check] repo.Delete")
		}
		g.metrics.SessionCheck(Expired.String())
		g.logger.Info().Str("session_id", sessionID).Msg("session expired and evicted")
		return Expired, nil, nil
	}

	g.metrics.SessionCheck(Valid.String())
	return Valid, s, nil
}

// Authenticate is Check expressed as an error: ErrSessionMissing or
// ErrSessionExpired unless the session is valid.
func (g *SessionGuard) Authenticate(ctx context.Context, sessionID string) (*sessions.Session, error) {
	result, s, err := g.Check(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch result {
	case Valid:
		return s, nil
	case Expired:
		return nil, adminerrors.ErrSessionExpired
	default:
		return nil, adminerrors.ErrSessionMissing
	}
}

// Guard runs protected only for a valid session. Otherwise it short-circuits
// to fallback, passing ExpiredNotice when this check observed expiry and ""
// when there was no session at all.
func (g *SessionGuard) Guard(
	ctx context.Context,
	sessionID string,
	protected func(*sessions.Session) error,
	fallback func(notice string) error,
) error {
	result, s, err := g.Check(ctx, sessionID)
	if err != nil {
		return err
	}
	switch result {
	case Valid:
		return protected(s)
	case Expired:
		return fallback(ExpiredNotice)
	default:
		return fallback("")
	}
}

// End evicts the session (logout). Ending an unknown session is not an error.
func (g *SessionGuard) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := g.repo.Delete(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[SessionGuard.End] repo.Delete")
	}
	g.logger.Info().Str("session_id", sessionID).Msg("session ended")
	return nil
}

// HashPassword returns a bcrypt hash suitable for NewSessionGuard.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "[auth.HashPassword]")
	}
	return string(b), nil
}
