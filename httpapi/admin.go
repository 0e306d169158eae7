package httpapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

func (s *Server) handleReset(c echo.Context) error {
	actor, _ := actorFrom(c)
	if err := s.Mediator.Reset(actor); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func parseAuditQuery(c echo.Context) store.AuditQuery {
	q := store.AuditQuery{}
	if actor := c.QueryParam("actor"); actor != "" {
		q.Actor = &actor
	}
	if action := c.QueryParam("action"); action != "" {
		a := ctxtypes.AuditAction(action)
		q.Action = &a
	}
	if resourceID := c.QueryParam("resourceId"); resourceID != "" {
		q.ResourceID = &resourceID
	}
	if from := c.QueryParam("from"); from != "" {
		q.From = &from
	}
	if to := c.QueryParam("to"); to != "" {
		q.To = &to
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.Limit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		q.Offset = offset
	}
	return q
}

func (s *Server) handleQueryAudit(c echo.Context) error {
	events, err := s.Mediator.Store.QueryAudit(parseAuditQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// handleExportAudit serves GET /audit/export?format=csv|json, defaulting
// to json. The CSV header is the fixed column order spec.md §6 specifies.
func (s *Server) handleExportAudit(c echo.Context) error {
	events, err := s.Mediator.Store.QueryAudit(parseAuditQuery(c))
	if err != nil {
		return writeError(c, err)
	}

	if c.QueryParam("format") != "csv" {
		return c.JSON(http.StatusOK, events)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	defer w.Flush()

	if err := w.Write([]string{"event_id", "timestamp", "actor_id", "actor_type", "action", "resource_id", "outcome"}); err != nil {
		return err
	}
	for _, e := range events {
		if err := w.Write([]string{e.EventID, e.Timestamp, e.ActorID, e.ActorType, string(e.Action), e.ResourceID, string(e.Outcome)}); err != nil {
			return err
		}
	}
	return nil
}

// handleDSARExport serves GET /admin/dsar/export?subject=X: every audit
// event recorded for a given actor, the "access" half of the DSAR pair.
func (s *Server) handleDSARExport(c echo.Context) error {
	subject := c.QueryParam("subject")
	if subject == "" {
		return writeError(c, store.Invalid("subject query parameter is required"))
	}
	events, err := s.Mediator.Store.QueryAudit(store.AuditQuery{Actor: &subject})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

type dsarEraseRequest struct {
	Subject string `json:"subject"`
}

// erasable is the narrow interface filestore and memstore both satisfy
// for recording a redaction intent; asserted against the underlying
// store rather than added to store.ContextStore, since erasure is a
// side-table concern orthogonal to the governance state machine.
type erasable interface {
	Erase(actorID string, at time.Time)
}

// handleDSARErase serves POST /admin/dsar/erase: records redaction intent
// for a subject without mutating the append-only audit log itself (see
// memstore.Store.Erase).
func (s *Server) handleDSARErase(c echo.Context) error {
	var req dsarEraseRequest
	if err := c.Bind(&req); err != nil || req.Subject == "" {
		return writeError(c, store.Invalid("subject is required"))
	}
	eraser, ok := s.Mediator.Store.(erasable)
	if !ok {
		return writeError(c, store.Internal("store backend does not support erasure"))
	}
	eraser.Erase(req.Subject, time.Now().UTC())
	return c.JSON(http.StatusOK, map[string]string{"status": "erasure recorded"})
}
