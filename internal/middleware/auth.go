package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/redevirtus/virtus/internal/auth"
	"github.com/redevirtus/virtus/internal/model"
)

// MemberLookup resolves a session subject to the current member record.
type MemberLookup interface {
	Member(id string) (model.Member, bool)
}

// RequireAuth validates the session cookie and populates AuthContext. Admin
// flags come from the member record, so role changes apply immediately.
func RequireAuth(sessions *auth.Sessions, members MemberLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := sessions.Parse(cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			member, ok := members.Member(claims.Subject)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ac := auth.AuthContext{
				MemberID:  member.ID,
				IsAdmin:   member.IsAdmin,
				AdminType: member.AdminType,
				SessionID: claims.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated member is an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCreator checks that the authenticated member is the creator admin.
func RequireCreator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsCreator(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
