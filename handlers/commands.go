// commands.go - command status lookup and live progress streaming
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sysmanage/database"
	"sysmanage/services"
	"sysmanage/utils"
)

// SetupCommandRoutes configures command status endpoints.
func SetupCommandRoutes(router chi.Router) {
	router.Get("/commands/{id}", func(w http.ResponseWriter, r *http.Request) {
		cmd, err := database.GetCommand(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			dbError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cmd)
	})

	// SSE stream of a command's lifecycle. Emits the current state first,
	// then events until the command reaches a terminal status.
	router.Get("/commands/{id}/stream", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		cmd, err := database.GetCommand(r.Context(), id)
		if err != nil {
			dbError(w, err)
			return
		}

		stream, err := utils.NewEventStream(w)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		events, cancel := services.Agents.WatchCommand(id)
		defer cancel()

		emit := func(ev services.CommandEvent) {
			_ = stream.Send("command", ev)
		}
		emit(services.CommandEvent{CommandID: cmd.ID, Status: cmd.Status, Result: cmd.Result})
		if services.TerminalCommandStatus(cmd.Status) {
			return
		}

		keepalive := time.NewTicker(20 * time.Second)
		defer keepalive.Stop()
		for {
			select {
			case ev := <-events:
				emit(ev)
				if services.TerminalCommandStatus(ev.Status) {
					return
				}
			case <-keepalive.C:
				stream.Keepalive()
			case <-r.Context().Done():
				return
			}
		}
	})
}
