package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
)

// EvaluateRequest is a manual moderation request for one comment, used for
// re-moderation and for testing filter setups.
type EvaluateRequest struct {
	AccountID         string `json:"account_id"`
	CommentID         string `json:"comment_id"`
	PlatformCommentID string `json:"platform_comment_id"`
	PostID            string `json:"post_id"`
	Text              string `json:"text"`
	CommenterID       string `json:"commenter_id"`
	CommenterUsername string `json:"commenter_username"`
}

// Evaluate runs one comment through the pipeline synchronously and returns
// the full decision.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "account_id and text are required")
		return
	}

	acc, found, err := h.Accounts.GetByAccountID(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve account")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Unknown account")
		return
	}

	commentID := req.CommentID
	if commentID == "" {
		commentID = req.PlatformCommentID
	}

	in := &moderation.Input{
		CommentID:         commentID,
		Text:              req.Text,
		CommenterID:       req.CommenterID,
		CommenterUsername: req.CommenterUsername,
		AccountID:         acc.AccountID,
		AccountUsername:   acc.Username,
		AccountPlatformID: acc.PlatformID,
		PostID:            req.PostID,
		PlatformCommentID: req.PlatformCommentID,
		Credential:        acc.AccessToken,
		Owner:             acc.Owner(),
		ReceivedAt:        time.Now(),
	}

	result := h.Engine.Moderate(r.Context(), in)
	writeData(w, result)
}

// ListFlaggedComments returns an account's comments awaiting review.
func (h *Handler) ListFlaggedComments(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	comments, err := h.Comments.ListFlagged(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load flagged comments")
		return
	}
	writeData(w, comments)
}

// GetComment returns the stored state of one comment.
func (h *Handler) GetComment(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	platformCommentID := chi.URLParam(r, "commentID")

	comment, found, err := h.Comments.GetByPlatformID(r.Context(), accountID, platformCommentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load comment")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Comment not found")
		return
	}
	writeData(w, comment)
}
