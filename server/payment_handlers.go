package server

import (
	"net/http"

	"github.com/pkg/errors"

	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
	"github.com/jrsteele09/quiz-admin/payments"
)

type paymentsResponse struct {
	Payments []payments.Payment `json:"payments"`
	Stats    payments.Stats     `json:"stats"`
}

type dueRequest struct {
	Due *bool `json:"due"`
}

type paymentResponse struct {
	Payment payments.Payment `json:"payment"`
}

// PaymentsListHandler reloads the ledger from the backend and lists it.
func (s *Server) PaymentsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.payments.Load(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, paymentsResponse{Payments: s.payments.List(), Stats: s.payments.Stats()})
	}
}

func (s *Server) PaymentDueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dueRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Due == nil {
			s.writeError(w, r, errors.Wrap(adminerrors.ErrInvalidInput, "due is required"))
			return
		}
		p, err := s.dispatcher.SetDue(r.Context(), r.PathValue("id"), *req.Due)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, paymentResponse{Payment: p})
	}
}
