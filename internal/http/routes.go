package http

import (
	"referral_bot/internal/http/handlers"
	"referral_bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the operational HTTP surface: health probes,
// Prometheus metrics and the public JSON leaderboard.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, svc *service.ReferralService) {
	healthHandler := handlers.NewHealthHandler(db)
	leaderboardHandler := handlers.NewLeaderboardHandler(svc)

	r.GET("/health", healthHandler.Liveness)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
}
