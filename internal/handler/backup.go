package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redevirtus/virtus/internal/backup"
)

// BackupRunner uploads state snapshots.
type BackupRunner interface {
	Enabled() bool
	Status() backup.Status
	RunNow(ctx context.Context) (string, error)
}

type BackupHandler struct {
	backups BackupRunner
	logger  *slog.Logger
}

func NewBackupHandler(b BackupRunner, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: b, logger: logger}
}

// Status handles GET /api/admin/backups
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backups.Status())
}

// Run handles POST /api/admin/backups
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.backups.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}
	key, err := h.backups.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}
