package handlers

import (
	"database/sql"
	"net/http"

	"github.com/crenwick/taxonvault/internal/backup"
)

// HealthHandler reports service liveness, database reachability, and whether
// a restore is currently running.
func HealthHandler(db *sql.DB, engine *backup.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := "ok"
		code := http.StatusOK
		dbStatus := "ok"

		if err := db.PingContext(r.Context()); err != nil {
			status = "degraded"
			dbStatus = "unreachable"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]interface{}{
			"status":              status,
			"database":            dbStatus,
			"restore_in_progress": engine.Restoring(),
		})
	}
}
