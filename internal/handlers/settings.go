package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
)

// GetResolvedSettings returns the effective settings for an account after
// layering account over client over owner over defaults.
func (h *Handler) GetResolvedSettings(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	acc, found, err := h.Accounts.GetByAccountID(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve account")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Unknown account")
		return
	}

	resolved := h.Resolver.Resolve(r.Context(), accountID, acc.Owner())
	writeData(w, resolved)
}

// UpsertSettings stores a settings document at its scope and invalidates the
// resolver cache so the next evaluation sees it.
func (h *Handler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	var doc models.ModerationSettings
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch doc.Scope {
	case models.SettingsScopeAccount:
		if doc.AccountID == "" {
			writeError(w, http.StatusBadRequest, "account_id is required for account scope")
			return
		}
	case models.SettingsScopeClient:
		if doc.OwnerClientID == nil {
			writeError(w, http.StatusBadRequest, "owner_client_id is required for client scope")
			return
		}
	case models.SettingsScopeOwner:
		if doc.OwnerUserID == nil && doc.OwnerClientID == nil {
			writeError(w, http.StatusBadRequest, "An owner id is required for owner scope")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Invalid scope")
		return
	}

	for name := range doc.Categories {
		if !models.Category(name).IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid category in settings")
			return
		}
	}

	if err := h.Settings.Upsert(r.Context(), &doc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	// Account-scoped documents stale one account's cached snapshots; owner-
	// and client-scoped ones have no account id and stale every cached
	// account of the owner.
	owner := models.OwnerRef{UserID: doc.OwnerUserID, ClientID: doc.OwnerClientID}
	if doc.Scope == models.SettingsScopeAccount {
		h.Resolver.Invalidate(doc.AccountID, owner)
	} else {
		h.Resolver.InvalidateOwner(owner)
	}
	if h.Hub != nil {
		h.Hub.PublishSettingsInvalidation(doc.AccountID, owner.Key())
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Settings saved"})
}

// GetUsage returns the owner's current month moderation usage and limit.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	used, limit, unlimited, err := h.Billing.Usage(r.Context(), owner, moderation.FeatureCommentModeration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load usage")
		return
	}
	writeData(w, map[string]interface{}{
		"feature":   moderation.FeatureCommentModeration,
		"used":      used,
		"limit":     limit,
		"unlimited": unlimited,
	})
}

// --- Managed accounts ---

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accs, err := h.Accounts.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load accounts")
		return
	}
	writeData(w, accs)
}

// EnrollAccountRequest registers a platform account for moderation.
type EnrollAccountRequest struct {
	AccountID   string `json:"account_id"`
	PlatformID  string `json:"platform_id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	Active      *bool  `json:"active,omitempty"`
}

func (h *Handler) EnrollAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req EnrollAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == "" || req.PlatformID == "" || req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "account_id, platform_id and access_token are required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	acc := &models.ManagedAccount{
		AccountID:     req.AccountID,
		PlatformID:    req.PlatformID,
		Username:      req.Username,
		AccessToken:   req.AccessToken,
		OwnerUserID:   owner.UserID,
		OwnerClientID: owner.ClientID,
		Active:        active,
	}
	if err := h.Accounts.Upsert(r.Context(), acc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to enroll account")
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Message: "Account enrolled"})
}
