package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/config"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/handlers"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/middleware"
)

// SetupRoutes wires the HTTP surface: public webhook ingestion, the
// token-protected admin API, the live event feed, and operational endpoints.
func SetupRoutes(r *chi.Mux, h *handlers.Handler, cfg *config.Config, rdb *redis.Client) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Hub-Signature-256"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SecurityHeaders)

	// Operational endpoints, unauthenticated.
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Platform webhook: signature-checked, rate limited per source IP.
	r.Route("/api/webhook", func(r chi.Router) {
		r.Use(middleware.WebhookRateLimit(rdb))
		r.Get("/comments", h.VerifyWebhook)
		r.Post("/comments", h.ReceiveWebhook)
	})

	// Live moderation feed for dashboards.
	r.Get("/api/ws/events", h.EventsWebSocket)

	// Admin API: bearer token, tighter rate limit.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminRateLimit)
		r.Use(middleware.AdminAuth(cfg.AdminTokenHash))

		r.Post("/moderation/evaluate", h.Evaluate)

		r.Get("/accounts", h.ListAccounts)
		r.Post("/accounts", h.EnrollAccount)

		r.Get("/accounts/{accountID}/comments/flagged", h.ListFlaggedComments)
		r.Get("/accounts/{accountID}/comments/{commentID}", h.GetComment)

		r.Get("/accounts/{accountID}/suspicious", h.ListSuspiciousAccounts)
		r.Get("/suspicious/{id}", h.GetSuspiciousAccount)
		r.Post("/suspicious/{id}/block", h.BlockSuspiciousAccount)
		r.Put("/suspicious/{id}/auto-hide", h.SetAutoHide)
		r.Put("/suspicious/{id}/auto-delete", h.SetAutoDelete)

		r.Get("/watchlist", h.ListWatchlist)
		r.Post("/watchlist", h.AddWatchlistEntry)
		r.Delete("/watchlist/{id}", h.RemoveWatchlistEntry)

		r.Get("/whitelist", h.ListWhitelist)
		r.Post("/whitelist", h.AddWhitelistEntry)
		r.Delete("/whitelist/{id}", h.RemoveWhitelistEntry)

		r.Get("/filters", h.ListFilters)
		r.Post("/filters", h.AddFilter)
		r.Patch("/filters/{id}", h.UpdateFilter)
		r.Delete("/filters/{id}", h.RemoveFilter)

		r.Get("/patterns", h.ListPatterns)
		r.Post("/patterns", h.AddPattern)
		r.Delete("/patterns/{id}", h.RemovePattern)

		r.Get("/accounts/{accountID}/settings", h.GetResolvedSettings)
		r.Put("/settings", h.UpsertSettings)
		r.Get("/usage", h.GetUsage)

		r.Get("/accounts/{accountID}/evidence", h.ListEvidence)
		r.Get("/accounts/{accountID}/evidence/commenter/{commenterID}", h.ListCommenterEvidence)
	})
}
