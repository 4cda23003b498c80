package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
)

const (
	webhookBodyLimit  = 1 << 20
	dedupeKeyPrefix   = "webhook:seen:"
	dedupeKeyLifetime = 24 * time.Hour
)

// webhookPayload mirrors the platform's comment change notification shape.
type webhookPayload struct {
	Entry []struct {
		ID      string `json:"id"` // platform account id
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				CommentID string `json:"comment_id"`
				PostID    string `json:"post_id"`
				Text      string `json:"text"`
				From      struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"from"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// VerifyWebhook answers the platform's subscription handshake.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.Config.WebhookVerifyToken && h.Config.WebhookVerifyToken != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	writeError(w, http.StatusForbidden, "Verification failed")
}

// ReceiveWebhook ingests comment events: verify signature, dedupe each
// comment, enqueue onto the worker pool, acknowledge immediately. A full
// queue returns 503 so the platform redelivers later.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	if !h.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var payload webhookPayload
	if err = json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	accepted := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "comments" && change.Field != "live_comments" {
				continue
			}
			v := change.Value
			if v.CommentID == "" || v.Text == "" {
				continue
			}

			// First delivery wins; platform webhooks redeliver aggressively.
			set, err := h.Redis.SetNX(r.Context(), dedupeKeyPrefix+v.CommentID, "1", dedupeKeyLifetime).Result()
			if err != nil {
				h.logger().Warn("webhook dedupe check failed", zap.Error(err))
			} else if !set {
				continue
			}

			acc, found, err := h.Accounts.GetByPlatformID(r.Context(), entry.ID)
			if err != nil {
				h.logger().Error("resolving webhook account failed",
					zap.String("platform_id", entry.ID), zap.Error(err))
				continue
			}
			if !found {
				h.logger().Warn("webhook event for unknown account",
					zap.String("platform_id", entry.ID))
				continue
			}

			in := &moderation.Input{
				CommentID:         v.CommentID,
				Text:              v.Text,
				CommenterID:       v.From.ID,
				CommenterUsername: v.From.Username,
				AccountID:         acc.AccountID,
				AccountUsername:   acc.Username,
				AccountPlatformID: acc.PlatformID,
				PostID:            v.PostID,
				PlatformCommentID: v.CommentID,
				Credential:        acc.AccessToken,
				Owner:             acc.Owner(),
				ReceivedAt:        time.Now(),
			}

			if err := h.Pool.Submit(in); err != nil {
				// Release the dedupe claim so the platform's redelivery is
				// not skipped as a duplicate of a comment we never queued.
				if delErr := h.Redis.Del(r.Context(), dedupeKeyPrefix+v.CommentID).Err(); delErr != nil {
					h.logger().Warn("releasing webhook dedupe key failed",
						zap.String("comment_id", v.CommentID), zap.Error(delErr))
				}
				if errors.Is(err, moderation.ErrQueueFull) {
					writeError(w, http.StatusServiceUnavailable, "Queue full, retry later")
					return
				}
				h.logger().Error("enqueueing comment failed", zap.Error(err))
				continue
			}
			accepted++
		}
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]int{"accepted": accepted}})
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if h.Config.WebhookAppSecret == "" {
		// Unsigned mode for local development only.
		return !h.Config.IsProduction()
	}
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	expected, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.Config.WebhookAppSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}
