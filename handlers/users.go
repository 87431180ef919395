// users.go - console user management and the caller's own profile
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"sysmanage/common"
	"sysmanage/database"
	"sysmanage/middleware"
	"sysmanage/services"
)

// SetupUserRoutes configures console user and security role endpoints.
func SetupUserRoutes(router chi.Router) {
	// The caller's own identity and effective roles; this is what the UI's
	// permission cache loads.
	router.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
		u := middleware.CurrentUser(r.Context())
		roles, err := services.Privileges.Roles(r.Context(), u.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  u,
			"roles": roles,
		})
	})

	router.Get("/users", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListUsers(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.With(middleware.RequirePermission("Add User")).
		Post("/users", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Username string `json:"username"`
				Email    string `json:"email,omitempty"`
				Password string `json:"password"`
				IsAdmin  bool   `json:"is_admin,omitempty"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			body.Username = strings.TrimSpace(body.Username)
			if body.Username == "" || len(body.Password) < 8 {
				httpError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
				return
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
			if err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			u, err := database.CreateUser(r.Context(), body.Username, body.Email, string(hash), body.IsAdmin)
			if err != nil {
				httpError(w, http.StatusConflict, "user already exists")
				return
			}
			common.InfoLog("users: %s created by %s", u.Username, middleware.GetUserName(r.Context()))
			writeJSON(w, http.StatusCreated, u)
		})

	router.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		u, err := database.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	})

	router.With(middleware.RequirePermission("Edit User")).
		Patch("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Email    *string `json:"email,omitempty"`
				Active   *bool   `json:"active,omitempty"`
				IsAdmin  *bool   `json:"is_admin,omitempty"`
				Password *string `json:"password,omitempty"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			var passwordHash *string
			if body.Password != nil {
				if len(*body.Password) < 8 {
					httpError(w, http.StatusBadRequest, "password must be at least 8 characters")
					return
				}
				hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
				if err != nil {
					httpError(w, http.StatusInternalServerError, err.Error())
					return
				}
				s := string(hash)
				passwordHash = &s
			}
			id := chi.URLParam(r, "id")
			if err := database.UpdateUser(r.Context(), id, body.Email, body.Active, body.IsAdmin, passwordHash); err != nil {
				dbError(w, err)
				return
			}
			// Admin flips change effective grants immediately.
			if body.IsAdmin != nil || body.Active != nil {
				services.Privileges.Invalidate(id)
			}
			w.WriteHeader(http.StatusNoContent)
		})

	router.With(middleware.RequirePermission("Lock User")).
		Post("/users/{id}/lock", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			locked := false
			if err := database.UpdateUser(r.Context(), id, nil, &locked, nil, nil); err != nil {
				dbError(w, err)
				return
			}
			if err := database.RevokeUserRefreshTokens(r.Context(), id); err != nil {
				httpError(w, http.StatusInternalServerError, err.Error())
				return
			}
			services.Privileges.Invalidate(id)
			w.WriteHeader(http.StatusNoContent)
		})

	router.With(middleware.RequirePermission("Delete User")).
		Delete("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == middleware.CurrentUser(r.Context()).ID {
				httpError(w, http.StatusBadRequest, "cannot delete the current user")
				return
			}
			if err := database.DeleteUser(r.Context(), id); err != nil {
				dbError(w, err)
				return
			}
			services.Privileges.Invalidate(id)
			w.WriteHeader(http.StatusNoContent)
		})

	// Security role catalog and per-user grants
	router.Get("/security-roles", func(w http.ResponseWriter, r *http.Request) {
		items, err := database.ListSecurityRoles(r.Context())
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.Get("/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		names, err := database.GetUserRoleNames(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": names})
	})

	router.With(middleware.RequirePermission("Edit User")).
		Put("/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				RoleIDs []int `json:"role_ids"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			id := chi.URLParam(r, "id")
			if err := database.SetUserRoles(r.Context(), id, body.RoleIDs); err != nil {
				dbError(w, err)
				return
			}
			services.Privileges.Invalidate(id)
			w.WriteHeader(http.StatusNoContent)
		})
}
