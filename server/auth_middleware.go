package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/quiz-admin/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the validated operator session
const ContextKeySession ContextKey = "session"

const SessionCookieName = "quiz_admin_session"

// SessionFromContext returns the session injected by RequireSessionAuth.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	s, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return s, ok && s != nil
}

// sessionToken reads the signed token from the session cookie, falling back
// to a Bearer Authorization header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// sessionID resolves the request's token to a session id. A forged or
// malformed token is treated as no session at all.
func (s *Server) sessionID(r *http.Request) string {
	token := sessionToken(r)
	if token == "" {
		return ""
	}
	id, _, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("rejected session token")
		return ""
	}
	return id
}

// RequireSessionAuth runs the handler only for a valid operator session.
// The request that first observes expiry gets the expiry notice and a
// cleared cookie; later requests get a plain 401.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			err := s.guard.Guard(r.Context(), s.sessionID(r),
				func(session *sessions.Session) error {
					ctx := context.WithValue(r.Context(), ContextKeySession, session)
					next(w, r.WithContext(ctx))
					return nil
				},
				func(notice string) error {
					s.clearSessionCookie(w)
					if notice != "" {
						writeJSON(w, http.StatusUnauthorized, errorBody{Error: notice, Expired: true})
						return nil
					}
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
					return nil
				},
			)
			if err != nil {
				s.writeError(w, r, err)
			}
		}
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, session *sessions.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt(),
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}
