package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/accounts"
	adminerrors "github.com/jrsteele09/quiz-admin/internal/errors"
)

type accountsResponse struct {
	Users []accounts.Record `json:"users"`
}

type accountResponse struct {
	User accounts.Record `json:"user"`
}

type stageStatusRequest struct {
	Status string `json:"status"`
}

type stageTrustRequest struct {
	Trust *bool `json:"trust"`
}

type walletRequest struct {
	Coin *float64 `json:"coin"`
}

func (s *Server) AccountsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, accountsResponse{Users: s.accounts.List()})
	}
}

func (s *Server) AccountsRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.accounts.Refresh(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountsResponse{Users: s.accounts.List()})
	}
}

// writeAccount replies with the current record for id.
func (s *Server) writeAccount(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.accounts.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{User: rec})
}

// StageStatusHandler stages a status change. Nothing reaches the backend
// until the commit route is called.
func (s *Server) StageStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stageStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		status, err := accounts.ParseStatus(req.Status)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		id := r.PathValue("id")
		if err := s.accounts.StageStatus(id, status); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAccount(w, r, id)
	}
}

func (s *Server) CommitStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.dispatcher.CommitStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{User: rec})
	}
}

func (s *Server) StageTrustHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stageTrustRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Trust == nil {
			s.writeError(w, r, errors.Wrap(adminerrors.ErrInvalidInput, "trust is required"))
			return
		}
		id := r.PathValue("id")
		if err := s.accounts.StageTrust(id, *req.Trust); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAccount(w, r, id)
	}
}

func (s *Server) CommitTrustHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.dispatcher.CommitTrust(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{User: rec})
	}
}

// DiscardHandler drops staged values: ?field=status or ?field=trust for one,
// both otherwise.
func (s *Server) DiscardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var err error
		switch field := r.URL.Query().Get("field"); field {
		case "":
			err = s.accounts.Discard(id)
		case "status":
			err = s.accounts.DiscardStatus(id)
		case "trust":
			err = s.accounts.DiscardTrust(id)
		default:
			err = errors.Wrapf(adminerrors.ErrInvalidInput, "unknown field %q", field)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeAccount(w, r, id)
	}
}

func (s *Server) WalletHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req walletRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Coin == nil {
			s.writeError(w, r, errors.Wrap(adminerrors.ErrInvalidInput, "coin is required"))
			return
		}
		rec, err := s.dispatcher.SetWallet(r.Context(), r.PathValue("id"), *req.Coin)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, accountResponse{User: rec})
	}
}

func (s *Server) DeleteAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.dispatcher.DeleteAccount(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
