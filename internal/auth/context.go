package auth

import (
	"context"

	"github.com/redevirtus/virtus/internal/model"
)

type contextKey struct{}

type AuthContext struct {
	MemberID  string
	IsAdmin   bool
	AdminType model.AdminType
	SessionID string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func MemberID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.MemberID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsAdmin
}

// IsCreator reports whether the request comes from the creator admin.
func IsCreator(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsAdmin && ac.AdminType == model.AdminCreator
}
