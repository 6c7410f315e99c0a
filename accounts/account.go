package accounts

import (
	"time"

	"github.com/jrsteele09/quiz-admin/internal/utils"
)

// Account mirrors a backend user record for the duration of a view.
type Account struct {
	ID            string     `json:"id"`
	FullName      string     `json:"full_name"`
	Email         string     `json:"email"`
	PhoneNumber   string     `json:"phone_number,omitempty"`
	CountryCode   string     `json:"country_code,omitempty"`
	ReferenceCode string     `json:"reference_code,omitempty"`
	BusinessPlan  string     `json:"business_plan,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	DOB           *time.Time `json:"dob,omitempty"`
	Verified      bool       `json:"verified"`
	Coin          float64    `json:"coin"`
	Status        Status     `json:"status"`
	PauseStart    *time.Time `json:"pause_start"`
	BlockDate     *time.Time `json:"block_date"`
	Trust         bool       `json:"trust"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Apply sets the status and its timestamps from c.
func (a *Account) Apply(c StatusChange) {
	a.Status = c.Status
	a.PauseStart = copyTime(c.PauseStart)
	a.BlockDate = copyTime(c.BlockDate)
}

// IsStalePaused reports whether a Paused account has been paused for at
// least grace. Advisory only: nothing transitions the account automatically.
func (a *Account) IsStalePaused(now time.Time, grace time.Duration) bool {
	if a.Status != StatusPaused || a.PauseStart == nil {
		return false
	}
	return now.Sub(*a.PauseStart) >= grace
}

func (a Account) clone() Account {
	a.DOB = copyTime(a.DOB)
	a.PauseStart = copyTime(a.PauseStart)
	a.BlockDate = copyTime(a.BlockDate)
	a.CreatedAt = copyTime(a.CreatedAt)
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return utils.Ptr(*t)
}
