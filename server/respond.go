package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/backend"
	"github.com/jrsteele09/quiz-admin/cooldown"
	"github.com/jrsteele09/quiz-admin/dispatch"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string              `json:"error"`
	Expired   bool                `json:"expired,omitempty"`
	Field     string              `json:"field,omitempty"`
	Remaining *cooldown.Remaining `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(adminerrors.ErrInvalidInput, err.Error())
	}
	return nil
}

// statusFor maps the console error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case adminerrors.IsAuth(err):
		return http.StatusUnauthorized
	case errors.Is(err, adminerrors.ErrCooldownBlocked):
		return http.StatusTooManyRequests
	case errors.Is(err, adminerrors.ErrUnknownAction),
		errors.Is(err, adminerrors.ErrInvalidStatus),
		errors.Is(err, adminerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, adminerrors.ErrActionInFlight):
		return http.StatusConflict
	case errors.Is(err, adminerrors.ErrAccountNotFound),
		errors.Is(err, adminerrors.ErrPaymentNotFound),
		errors.Is(err, adminerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, adminerrors.ErrDispatchFailed),
		errors.Is(err, adminerrors.ErrCommitFailed),
		errors.Is(err, adminerrors.ErrRegistryNotLoaded),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err as JSON. Backend failures carry the backend's text
// verbatim; cooldown blocks carry the time remaining.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error()}

	var cooldownErr *adminerrors.CooldownError
	var dispatchErr *adminerrors.DispatchError
	var commitErr *adminerrors.CommitError
	switch {
	case errors.As(err, &cooldownErr):
		h, m := adminerrors.SplitHoursMinutes(cooldownErr.Remaining)
		body.Remaining = &cooldown.Remaining{Hours: h, Minutes: m, Duration: cooldownErr.Remaining}
	case errors.As(err, &dispatchErr):
		body.Error = dispatchErr.Message
	case errors.As(err, &commitErr):
		body.Error = commitErr.Message
		body.Field = commitErr.Field
	}

	if code == http.StatusInternalServerError {
		s.logger.Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}
