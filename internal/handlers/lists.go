package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

// ownerFromRequest reads the owner scope from query parameters. Exactly one
// of owner_user_id / owner_client_id must be present.
func ownerFromRequest(r *http.Request) (models.OwnerRef, bool) {
	q := r.URL.Query()
	if hex := q.Get("owner_client_id"); hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return models.OwnerRef{}, false
		}
		return models.OwnerRef{ClientID: &id}, true
	}
	if hex := q.Get("owner_user_id"); hex != "" {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return models.OwnerRef{}, false
		}
		return models.OwnerRef{UserID: &id}, true
	}
	return models.OwnerRef{}, false
}

func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (models.OwnerRef, bool) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "owner_user_id or owner_client_id is required")
	}
	return owner, ok
}

// --- Watchlist ---

func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	entries, err := h.Lists.ListWatchlist(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load watchlist")
		return
	}
	writeData(w, entries)
}

func (h *Handler) AddWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var entry models.WatchlistEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if entry.CommenterUsername == "" && entry.CommenterID == "" {
		writeError(w, http.StatusBadRequest, "commenter_username or commenter_id is required")
		return
	}
	entry.OwnerUserID = owner.UserID
	entry.OwnerClientID = owner.ClientID

	if err := h.Lists.AddWatchlistEntry(r.Context(), &entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add watchlist entry")
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: entry})
}

func (h *Handler) RemoveWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	removed, err := h.Lists.RemoveWatchlistEntry(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove watchlist entry")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Watchlist entry not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Entry removed"})
}

// --- Whitelist ---

func (h *Handler) ListWhitelist(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	entries, err := h.Lists.ListWhitelist(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load whitelist")
		return
	}
	writeData(w, entries)
}

func (h *Handler) AddWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var entry models.WhitelistEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if entry.CommenterID == "" && entry.CommenterUsername == "" && entry.Identifier == "" {
		writeError(w, http.StatusBadRequest, "A commenter or identifier is required")
		return
	}
	entry.OwnerUserID = owner.UserID
	entry.OwnerClientID = owner.ClientID

	if err := h.Lists.AddWhitelistEntry(r.Context(), &entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add whitelist entry")
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: entry})
}

func (h *Handler) RemoveWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	removed, err := h.Lists.RemoveWhitelistEntry(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove whitelist entry")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Whitelist entry not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Entry removed"})
}

// --- Custom filters ---

func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	filters, err := h.Lists.ListFilters(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load filters")
		return
	}
	writeData(w, filters)
}

func (h *Handler) AddFilter(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var filter models.CustomFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if filter.Prompt == "" && filter.Category == "" {
		writeError(w, http.StatusBadRequest, "prompt or category is required")
		return
	}
	if filter.Category != "" && !filter.Category.IsValid() {
		writeError(w, http.StatusBadRequest, "Invalid category")
		return
	}
	filter.OwnerUserID = owner.UserID
	filter.OwnerClientID = owner.ClientID

	if err := h.Lists.AddFilter(r.Context(), &filter); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add filter")
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: filter})
}

// UpdateFilterRequest carries the mutable filter fields; nil means unchanged.
type UpdateFilterRequest struct {
	Enabled    *bool   `json:"enabled,omitempty"`
	Prompt     *string `json:"prompt,omitempty"`
	Semantic   *bool   `json:"semantic,omitempty"`
	AutoDelete *bool   `json:"auto_delete,omitempty"`
	AutoHide   *bool   `json:"auto_hide,omitempty"`
	AutoFlag   *bool   `json:"auto_flag,omitempty"`
}

func (h *Handler) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req UpdateFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update := bson.M{}
	if req.Enabled != nil {
		update["enabled"] = *req.Enabled
	}
	if req.Prompt != nil {
		update["prompt"] = *req.Prompt
	}
	if req.Semantic != nil {
		update["semantic"] = *req.Semantic
	}
	if req.AutoDelete != nil {
		update["auto_delete"] = *req.AutoDelete
	}
	if req.AutoHide != nil {
		update["auto_hide"] = *req.AutoHide
	}
	if req.AutoFlag != nil {
		update["auto_flag"] = *req.AutoFlag
	}
	if len(update) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	updated, err := h.Lists.UpdateFilter(r.Context(), owner, id, update)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update filter")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Filter not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Filter updated"})
}

func (h *Handler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	removed, err := h.Lists.RemoveFilter(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove filter")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Filter not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Filter removed"})
}

// --- Similarity pattern corpora ---

// AddPatternRequest adds one reviewed comment to a similarity corpus.
type AddPatternRequest struct {
	Text string `json:"text"`
	// "hide" or "delete" for the auto-action corpus; empty adds to the
	// allowed corpus.
	Action string `json:"action,omitempty"`
}

func (h *Handler) AddPattern(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req AddPatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var pattern *models.EmbeddingPattern
	var err error
	if req.Action == "" {
		pattern, err = h.Embeddings.AddAllowedPattern(r.Context(), owner, req.Text)
	} else {
		pattern, err = h.Embeddings.AddAutoActionPattern(r.Context(), owner, req.Text, req.Action)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add pattern")
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: pattern})
}

func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	autoAction, _ := strconv.ParseBool(r.URL.Query().Get("auto_action"))

	patterns, err := h.Embeddings.ListPatterns(r.Context(), owner, autoAction)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load patterns")
		return
	}
	writeData(w, patterns)
}

func (h *Handler) RemovePattern(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	autoAction, _ := strconv.ParseBool(r.URL.Query().Get("auto_action"))

	removed, err := h.Embeddings.RemovePattern(r.Context(), owner, chi.URLParam(r, "id"), autoAction)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to remove pattern")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Pattern not found")
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Pattern removed"})
}
