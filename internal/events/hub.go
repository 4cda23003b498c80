package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
)

const (
	channelPrefix   = "moderation:account:"
	settingsChannel = "moderation:settings:invalidate"
)

// Event is the payload broadcast over Redis and WebSocket when a comment
// finishes moderation.
type Event struct {
	Type      string                   `json:"type"`
	AccountID string                   `json:"account_id"`
	Result    *models.ModerationResult `json:"result,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// Conn is the minimal interface our WebSocket implementation must satisfy.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadJSON(dest interface{}) error
	Close() error
}

// connection tracks a single dashboard WebSocket and the accounts it watches.
type connection struct {
	conn       Conn
	subscribed map[string]struct{}
	mu         sync.RWMutex
}

// Hub fans moderation results out to connected dashboards. Results publish
// through Redis so every instance sees every decision, then fan out to the
// instance's local connections.
type Hub struct {
	rdb    *redis.Client
	logger *zap.Logger

	mu          sync.RWMutex
	connections map[*connection]struct{}

	subscriberOnce sync.Once
	settingsOnce   sync.Once
}

// SettingsInvalidator is the local settings cache the invalidation channel
// purges on every instance.
type SettingsInvalidator interface {
	InvalidateAccount(accountID string)
	InvalidateOwnerKey(ownerKey string)
}

// settingsInvalidation is the wire payload for a settings change. An empty
// AccountID means an owner- or client-scoped document changed and every
// cached snapshot for the owner is stale.
type settingsInvalidation struct {
	AccountID string `json:"account_id,omitempty"`
	OwnerKey  string `json:"owner_key"`
}

func NewHub(rdb *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		rdb:         rdb,
		logger:      logger,
		connections: make(map[*connection]struct{}),
	}
}

// Register adds a dashboard connection watching the given accounts and
// returns an unregister func.
func (h *Hub) Register(conn Conn, accountIDs []string) func() {
	c := &connection{conn: conn, subscribed: make(map[string]struct{}, len(accountIDs))}
	for _, id := range accountIDs {
		c.subscribed[id] = struct{}{}
	}

	h.mu.Lock()
	h.connections[c] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.connections, c)
		h.mu.Unlock()
	}
}

// Subscribe adds an account to an already registered connection. No-op when
// the connection is gone.
func (h *Hub) Subscribe(conn Conn, accountID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.conn == conn {
			c.mu.Lock()
			c.subscribed[accountID] = struct{}{}
			c.mu.Unlock()
			return
		}
	}
}

// PublishResult publishes a finished moderation result to Redis. Best-effort;
// a publish failure never affects the decision.
func (h *Hub) PublishResult(result *models.ModerationResult) {
	event := Event{
		Type:      "moderation_result",
		AccountID: result.AccountID,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("encoding moderation event failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.rdb.Publish(ctx, channelPrefix+result.AccountID, data).Err(); err != nil {
		h.logger.Warn("publishing moderation event failed",
			zap.String("account_id", result.AccountID), zap.Error(err))
	}
}

// PublishSettingsInvalidation broadcasts a settings change over Redis so
// every instance drops its cached snapshots, not just the one that handled
// the update. Best-effort; the caller invalidates its own cache directly.
func (h *Hub) PublishSettingsInvalidation(accountID, ownerKey string) {
	data, err := json.Marshal(settingsInvalidation{AccountID: accountID, OwnerKey: ownerKey})
	if err != nil {
		h.logger.Warn("encoding settings invalidation failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.rdb.Publish(ctx, settingsChannel, data).Err(); err != nil {
		h.logger.Warn("publishing settings invalidation failed",
			zap.String("owner_key", ownerKey), zap.Error(err))
	}
}

// StartSettingsSubscriber ensures a single listener per instance applying
// remote settings invalidations to the local cache.
func (h *Hub) StartSettingsSubscriber(ctx context.Context, cache SettingsInvalidator) {
	h.settingsOnce.Do(func() {
		go h.runSettingsSubscriber(ctx, cache)
	})
}

func (h *Hub) runSettingsSubscriber(ctx context.Context, cache SettingsInvalidator) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := h.rdb.Subscribe(ctx, settingsChannel)
			defer pubsub.Close()

			h.logger.Info("settings invalidation subscriber started",
				zap.String("channel", settingsChannel))

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("settings invalidation subscriber error", zap.Error(err))
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var inv settingsInvalidation
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					h.logger.Warn("unmarshaling settings invalidation failed", zap.Error(err))
					continue
				}

				if inv.AccountID != "" {
					cache.InvalidateAccount(inv.AccountID)
				} else {
					cache.InvalidateOwnerKey(inv.OwnerKey)
				}
			}
		}()
	}
}

// fanOut sends an event to local connections watching its account.
func (h *Hub) fanOut(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		c.mu.RLock()
		_, watching := c.subscribed[event.AccountID]
		c.mu.RUnlock()
		if !watching {
			continue
		}

		// Non-blocking best-effort send.
		go func(conn Conn) {
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("writing moderation event to websocket failed", zap.Error(err))
			}
		}(c.conn)
	}
}

// StartSubscriber ensures a single shared Redis listener per instance.
func (h *Hub) StartSubscriber(ctx context.Context) {
	h.subscriberOnce.Do(func() {
		go h.runSubscriber(ctx)
	})
}

func (h *Hub) runSubscriber(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
			defer pubsub.Close()

			h.logger.Info("moderation event subscriber started",
				zap.String("pattern", channelPrefix+"*"))

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Warn("moderation event subscriber error", zap.Error(err))
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.Warn("unmarshaling moderation event failed", zap.Error(err))
					continue
				}

				h.fanOut(event)
			}
		}()
	}
}
