// Package handlers implements the HTTP API for the backup engine.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/crenwick/taxonvault/internal/backup"
	"github.com/crenwick/taxonvault/internal/repository"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var ve *backup.ValidationError
	var ie *backup.IntegrityError
	var pe *backup.ProviderError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": ve.Message,
			"field": ve.Field,
		})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Backup not found",
		})
	case errors.Is(err, backup.ErrRestoreInProgress):
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "A restore operation is already in progress",
		})
	case errors.As(err, &ie):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error": ie.Error(),
		})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": pe.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Internal server error",
		})
	}
}

// BackupsHandler handles the /api/backups collection: list and create.
func BackupsHandler(store *backup.Store, builder *backup.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			backups, err := store.List(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"backups": backups,
				"count":   len(backups),
			})

		case http.MethodPost:
			var req struct {
				Description string `json:"description"`
			}
			if r.Body != nil {
				// A missing or empty body is fine; the description is optional.
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
					writeJSON(w, http.StatusBadRequest, map[string]interface{}{
						"error": "Invalid request body",
					})
					return
				}
			}
			if req.Description == "" {
				req.Description = "Manual backup"
			}

			b, err := builder.Build(r.Context(), repository.TriggerManual, req.Description)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, b)

		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// BackupByIDHandler dispatches /api/backups/{id} and its sub-resources:
// preview, restore, and export.
func BackupByIDHandler(store *backup.Store, engine *backup.Engine, exchange *backup.Exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/backups/")
		parts := strings.SplitN(rest, "/", 2)

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "Invalid backup ID",
			})
			return
		}

		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch action {
		case "":
			switch r.Method {
			case http.MethodGet:
				b, err := store.Get(r.Context(), id)
				if err != nil {
					writeError(w, err)
					return
				}
				b.Payload = nil
				writeJSON(w, http.StatusOK, b)

			case http.MethodDelete:
				if err := store.Delete(r.Context(), id); err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"message": "Backup deleted",
					"id":      id,
				})

			default:
				w.Header().Set("Allow", "GET, DELETE")
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}

		case "preview":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			b, err := engine.Preview(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":             b.ID,
				"version_number": b.VersionNumber,
				"created_at":     b.CreatedAt,
				"trigger_type":   b.TriggerType,
				"description":    b.Description,
				"entity_counts":  b.EntityCounts,
			})

		case "restore":
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			result, err := engine.Restore(r.Context(), id)
			if err != nil {
				if errors.Is(err, backup.ErrRestoreInProgress) || result == nil {
					writeError(w, err)
					return
				}
				// Return the full result so the caller can see the safety
				// snapshot ID and operation ID even on failure.
				status := http.StatusInternalServerError
				var ie *backup.IntegrityError
				if errors.As(err, &ie) {
					status = http.StatusUnprocessableEntity
				} else if errors.Is(err, repository.ErrNotFound) {
					status = http.StatusNotFound
				}
				writeJSON(w, status, result)
				return
			}
			writeJSON(w, http.StatusOK, result)

		case "export":
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			data, b, err := exchange.Export(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition",
				fmt.Sprintf(`attachment; filename="taxonvault-backup-v%d.tvbx"`, b.VersionNumber))
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			if _, err := w.Write(data); err != nil {
				slog.Error("failed to write export response", "backup_id", id, "error", err)
			}

		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

// ImportHandler handles POST /api/backups/import: uploads a backup container
// and stores it as a new backup record.
func ImportHandler(exchange *backup.Exchange, maxImportSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
					"error": "Uploaded file exceeds the maximum import size",
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "Failed to read request body",
			})
			return
		}

		b, err := exchange.Import(r.Context(), data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

// TriggerHandler handles POST /api/backups/trigger: creates an automatic
// backup immediately.
func TriggerHandler(scheduler *backup.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error": "Invalid request body",
				})
				return
			}
		}

		b, err := scheduler.TriggerNow(r.Context(), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

// SettingsHandler handles GET and PUT on /api/backups/settings.
func SettingsHandler(store *backup.Store, scheduler *backup.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settings, err := store.GetSettings(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, settings)

		case http.MethodPut:
			var upd backup.SettingsUpdate
			if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"error": "Invalid request body",
				})
				return
			}

			settings, err := store.UpdateSettings(r.Context(), upd)
			if err != nil {
				writeError(w, err)
				return
			}
			scheduler.NotifySettingsChanged()
			writeJSON(w, http.StatusOK, settings)

		default:
			w.Header().Set("Allow", "GET, PUT")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
