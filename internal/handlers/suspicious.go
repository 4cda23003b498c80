package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListSuspiciousAccounts returns an account's tracked commenters, visible
// ones by default.
func (h *Handler) ListSuspiciousAccounts(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	includeHidden, _ := strconv.ParseBool(r.URL.Query().Get("include_hidden"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.Suspicious.List(r.Context(), accountID, includeHidden, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load suspicious accounts")
		return
	}
	writeData(w, recs)
}

// GetSuspiciousAccount returns one tracked commenter record.
func (h *Handler) GetSuspiciousAccount(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	rec, found, err := h.Suspicious.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load suspicious account")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Suspicious account not found")
		return
	}
	writeData(w, rec)
}

// BlockSuspiciousAccount manually blocks a tracked commenter on the platform
// and in the record.
func (h *Handler) BlockSuspiciousAccount(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	rec, found, err := h.Suspicious.Get(r.Context(), id)
	if err != nil || !found {
		writeError(w, http.StatusNotFound, "Suspicious account not found")
		return
	}

	if err := h.Suspicious.SetBlocked(r.Context(), id, "manual block"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to block account")
		return
	}

	// Best-effort platform block with the owning account's credential.
	if acc, ok, err := h.Accounts.GetByAccountID(r.Context(), rec.AccountID); err == nil && ok {
		h.Tracker.BlockOnPlatform(r.Context(), rec, acc.AccessToken)
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Account blocked"})
}

// AutoFlagsRequest toggles per-commenter automatic actions.
type AutoFlagsRequest struct {
	Enabled bool `json:"enabled"`
}

// SetAutoHide toggles automatic hiding for a tracked commenter. Enabling it
// also hides the commenter's existing active comments.
func (h *Handler) SetAutoHide(w http.ResponseWriter, r *http.Request) {
	h.setAutoFlag(w, r, false)
}

// SetAutoDelete toggles automatic deletion for a tracked commenter. Enabling
// it also deletes the commenter's existing comments.
func (h *Handler) SetAutoDelete(w http.ResponseWriter, r *http.Request) {
	h.setAutoFlag(w, r, true)
}

func (h *Handler) setAutoFlag(w http.ResponseWriter, r *http.Request, del bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req AutoFlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, found, err := h.Suspicious.Get(r.Context(), id)
	if err != nil || !found {
		writeError(w, http.StatusNotFound, "Suspicious account not found")
		return
	}

	credential := ""
	if acc, ok, err := h.Accounts.GetByAccountID(r.Context(), rec.AccountID); err == nil && ok {
		credential = acc.AccessToken
	}

	if del {
		err = h.Tracker.SetAutoDelete(r.Context(), id, req.Enabled, credential)
	} else {
		err = h.Tracker.SetAutoHide(r.Context(), id, req.Enabled, credential)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update auto action")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Auto action updated"})
}
