// handlers.go - shared helpers for the route files
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"sysmanage/database"
)

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func parseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(data)
}

// httpError emits the {"detail": ...} error shape clients expect.
func httpError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// dbError maps storage errors onto 404/500.
func dbError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	httpError(w, http.StatusInternalServerError, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
