package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/timebudget"
)

// SessionRunner counts a member's usage while a connection is open.
type SessionRunner interface {
	RunSession(ctx context.Context, memberID string, report func(timebudget.Snapshot)) error
}

type HandlerConfig struct {
	Usage          SessionRunner
	OriginPatterns []string
	Logger         *slog.Logger
}

// HandleWebSocket upgrades an authenticated request and runs it as a hub
// client. While connected, the member's usage is counted and reported to
// every connection of that member.
func HandleWebSocket(hub *Hub, cfg HandlerConfig) http.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := auth.MemberID(r.Context())
		if memberID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: cfg.OriginPatterns})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, memberID)
		client.Run(r.Context(), usageCompanion(hub, cfg, memberID, logger))
	}
}

func usageCompanion(hub *Hub, cfg HandlerConfig, memberID string, logger *slog.Logger) func(context.Context) {
	if cfg.Usage == nil {
		return nil
	}
	return func(ctx context.Context) {
		err := cfg.Usage.RunSession(ctx, memberID, func(s timebudget.Snapshot) {
			action := "tick"
			if s.State == timebudget.Blocked {
				action = "blocked"
			}
			hub.SendTo(memberID, NewMessage("usage", action, memberID, s))
		})
		if err != nil {
			logger.Error("usage session", "member_id", memberID, "error", err)
		}
	}
}
