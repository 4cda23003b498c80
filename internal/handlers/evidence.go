package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListEvidence returns an account's recent audit rows.
func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.Evidence.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load evidence")
		return
	}
	writeData(w, recs)
}

// ListCommenterEvidence returns the audit trail for one commenter on one
// account, the backing material for a block or report.
func (h *Handler) ListCommenterEvidence(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	commenterID := chi.URLParam(r, "commenterID")

	recs, err := h.Evidence.ListByCommenter(r.Context(), accountID, commenterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load evidence")
		return
	}
	writeData(w, recs)
}
