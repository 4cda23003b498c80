package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/billing"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/config"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/events"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/store"
)

// RedisClient covers the commands the HTTP surface issues directly, which is
// only webhook dedupe and the health check. *redis.Client satisfies it.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// AccountStore is the slice of the managed-account store the handlers use.
type AccountStore interface {
	GetByAccountID(ctx context.Context, accountID string) (*models.ManagedAccount, bool, error)
	GetByPlatformID(ctx context.Context, platformID string) (*models.ManagedAccount, bool, error)
	Upsert(ctx context.Context, acc *models.ManagedAccount) error
	List(ctx context.Context) ([]models.ManagedAccount, error)
}

// Handler bundles the dependencies the HTTP surface needs. One instance is
// built at startup and shared across routes.
type Handler struct {
	Config *config.Config
	Logger *zap.Logger
	Redis  RedisClient

	Engine   *moderation.Engine
	Pool     *moderation.Pool
	Tracker  *moderation.Tracker
	Resolver *moderation.SettingsResolver

	Accounts   AccountStore
	Comments   *store.CommentStore
	Suspicious *store.SuspiciousAccountStore
	Lists      *store.ListStore
	Settings   *store.SettingsStore
	Evidence   *store.EvidenceStore
	Embeddings *store.EmbeddingIndex

	Billing *billing.Service
	Hub     *events.Hub
}

// apiResponse is the shared success/message envelope.
type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}
