package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaif/hal/internal/log"
)

// health is a liveness probe. Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// readiness reports whether the server can serve traffic. With a pool
// configured it pings the database and includes pool stats.
func readiness(pool *pgxpool.Pool, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		if err := pool.Ping(r.Context()); err != nil {
			logger.Warn("readiness probe failed", "error", err)
			writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}

		stats := pool.Stat()
		writeJSON(w, logger, http.StatusOK, map[string]any{
			"status": "ready",
			"database": map[string]any{
				"total_conns": stats.TotalConns(),
				"idle_conns":  stats.IdleConns(),
			},
		})
	}
}
