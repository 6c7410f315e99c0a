package fakebackend

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/actions"
	"github.com/jrsteele09/quiz-admin/internal/utils"
)

// Handler serves the admin API wire contract over b.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/last-executed", b.handleLastExecuted)
	mux.HandleFunc("POST /api/admin/{endpoint}", b.handleTrigger)
	mux.HandleFunc("GET /api/users/all-users", b.handleListUsers)
	mux.HandleFunc("PUT /api/admin/users/{id}/status", b.handleUpdateStatus)
	mux.HandleFunc("PUT /api/users/{id}/trust", b.handleUpdateTrust)
	mux.HandleFunc("PUT /api/admin/users/{id}/wallet", b.handleUpdateWallet)
	mux.HandleFunc("DELETE /api/admin/users/{id}", b.handleDeleteUser)
	mux.HandleFunc("GET /api/wallet/all", b.handleListPayments)
	mux.HandleFunc("PUT /api/wallet-due/{id}", b.handleSetDue)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrPaymentNotFound) {
		code = http.StatusNotFound
	}
	writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
}

func (b *Backend) handleLastExecuted(w http.ResponseWriter, r *http.Request) {
	last, err := b.LastExecuted(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	body := make(map[string]any, len(actions.IDs()))
	for _, job := range actions.All() {
		if at, ok := last[job.ID]; ok {
			body[job.BackendName] = at.UTC().Format("2006-01-02T15:04:05.000Z07:00")
		} else {
			body[job.BackendName] = nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lastExecuted": body})
}

func (b *Backend) handleTrigger(w http.ResponseWriter, r *http.Request) {
	endpoint := r.PathValue("endpoint")
	for _, job := range actions.All() {
		if job.Endpoint != endpoint {
			continue
		}
		msg, err := b.Trigger(r.Context(), job)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Unknown job " + endpoint})
}

func (b *Backend) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := b.ListUsers(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list})
}

func (b *Backend) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status     string         `json:"status"`
		PauseStart utils.FlexTime `json:"pause_start"`
		BlockDate  utils.FlexTime `json:"block_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid body"})
		return
	}
	status, err := accounts.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid status"})
		return
	}

	change := accounts.StatusChange{Status: status, PauseStart: req.PauseStart.Ptr(), BlockDate: req.BlockDate.Ptr()}
	echo, err := b.UpdateStatus(r.Context(), r.PathValue("id"), change)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userReply(echo))
}

func (b *Backend) handleUpdateTrust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Trust utils.FlexBool `json:"trust"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid body"})
		return
	}
	echo, err := b.UpdateTrust(r.Context(), r.PathValue("id"), bool(req.Trust))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userReply(echo))
}

func userReply(echo *accounts.Echo) map[string]any {
	body := map[string]any{"success": true}
	if echo == nil {
		return body
	}
	if echo.Fields == nil {
		body["user"] = echo.Account
		return body
	}
	raw, _ := json.Marshal(echo.Account)
	var full map[string]json.RawMessage
	_ = json.Unmarshal(raw, &full)
	user := make(map[string]json.RawMessage, len(echo.Fields))
	for k := range echo.Fields {
		if v, ok := full[k]; ok {
			user[k] = v
		}
	}
	body["user"] = user
	return body
}

func (b *Backend) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coin utils.FlexFloat `json:"coin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid body"})
		return
	}
	if err := b.UpdateWallet(r.Context(), r.PathValue("id"), float64(req.Coin)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := b.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := b.ListPayments(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

func (b *Backend) handleSetDue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Due utils.FlexBool `json:"due"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid body"})
		return
	}
	if err := b.SetDue(r.Context(), r.PathValue("id"), bool(req.Due)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
