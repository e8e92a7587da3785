package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loreweaver/loreweaver/internal/log"
)

// health is a liveness probe for Docker/Kubernetes.
// Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness is a readiness probe that pings the database pool.
// With a nil pool it degrades to a liveness check.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Warn("readiness probe failed", "error", err)
			WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database not reachable", logger)
			return
		}

		stat := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"total_conns":    stat.TotalConns(),
			"idle_conns":     stat.IdleConns(),
			"acquired_conns": stat.AcquiredConns(),
		}, logger)
	}
}
