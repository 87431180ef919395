package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sysmanage/common"
	"sysmanage/services"
)

// User represents an authenticated console user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Context key type
type ctxKey string

const UserKey ctxKey = "sysmanage.user"

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// RequireAuth accepts either a bearer access token or a browser session.
// The resolved user lands in the request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			claims, err := services.VerifyAccessToken(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			u := User{ID: claims.UserID, Username: claims.Username}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, u)))
			return
		}

		if common.SessionManager != nil {
			u, ok := common.SessionManager.Get(r.Context(), "user").(User)
			exp := common.SessionManager.GetInt64(r.Context(), "exp")
			if ok && exp != 0 && time.Now().Unix() <= exp {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, u)))
				return
			}
		}

		writeDetail(w, http.StatusUnauthorized, "unauthorized")
	})
}

// RequirePermission gates a route on a named security role. Must run after
// RequireAuth.
func RequirePermission(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := CurrentUser(r.Context())
			if u.ID == "" {
				writeDetail(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ok, err := services.Privileges.HasRole(r.Context(), u.ID, role)
			if err != nil {
				writeDetail(w, http.StatusInternalServerError, "permission lookup failed")
				return
			}
			if !ok {
				writeDetail(w, http.StatusForbidden, "missing security role: "+role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser extracts the current user from the request context.
func CurrentUser(ctx context.Context) User {
	if v := ctx.Value(UserKey); v != nil {
		if u, ok := v.(User); ok {
			return u
		}
	}
	return User{}
}

// GetUserName extracts an identity string from context (for audit trails).
func GetUserName(ctx context.Context) string {
	u := CurrentUser(ctx)
	if u.Username != "" {
		return u.Username
	}
	if u.Email != "" {
		return u.Email
	}
	if u.ID != "" {
		return u.ID
	}
	return "anonymous"
}
