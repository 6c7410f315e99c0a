package sessions

import (
	"time"

	"github.com/google/uuid"
)

// Session records one accepted operator login. It is valid while
// now - IssuedAt <= TTL; there is no sliding renewal.
type Session struct {
	ID            string        `json:"id"`
	OperatorEmail string        `json:"operator_email"`
	IssuedAt      time.Time     `json:"issued_at"`
	TTL           time.Duration `json:"ttl"`
}

func New(operatorEmail string, issuedAt time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:            uuid.New().String(),
		OperatorEmail: operatorEmail,
		IssuedAt:      issuedAt,
		TTL:           ttl,
	}
}

// IsExpired reports whether the session has outlived its TTL at now.
func (s *Session) IsExpired(now time.Time) bool {
	return now.Sub(s.IssuedAt) > s.TTL
}

// ExpiresAt is the last instant at which the session is still valid.
func (s *Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(s.TTL)
}
