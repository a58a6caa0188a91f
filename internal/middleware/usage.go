package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/timebudget"
)

// UsageChecker reports timebudget.ErrBlocked for members past today's
// allowance.
type UsageChecker interface {
	Check(ctx context.Context, memberID string) error
}

// RequireUsage answers 423 Locked to members whose daily allowance is spent.
func RequireUsage(usage UsageChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := usage.Check(r.Context(), auth.MemberID(r.Context()))
			if errors.Is(err, timebudget.ErrBlocked) {
				writeError(w, http.StatusLocked, "Tempo diário esgotado. Volte amanhã.")
				return
			}
			if err != nil {
				logger.Error("check usage", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
