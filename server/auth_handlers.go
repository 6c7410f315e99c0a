package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/quiz-admin/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginHandler establishes an operator session and sets the session cookie.
// The token is also returned for non-browser clients.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		session, err := s.guard.Establish(r.Context(), auth.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		token, err := s.tokens.Sign(session)
		if err != nil {
			_ = s.guard.End(r.Context(), session.ID)
			s.writeError(w, r, err)
			return
		}

		s.setSessionCookie(w, token, session)
		writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: session.ExpiresAt()})
	}
}

// LogoutHandler ends the current session, if any. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.guard.End(r.Context(), s.sessionID(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.clearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
