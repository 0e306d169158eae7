package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const sseKeepAliveInterval = 15 * time.Second

// handleEvents serves GET /events: an SSE stream of the bus's published
// ServerEvents, with a "data: keepalive" frame every 15s so
// intermediaries and clients don't time out an idle connection. Grounded
// on echo.Context.Response()'s flushable writer, the same request-scoped-
// goroutine model the teacher uses for its other long-lived handlers.
func (s *Server) handleEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	events, unsubscribe := s.Bus.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.Logger.WithError(err).Error("failed to marshal server event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, payload); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, "data: keepalive\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
