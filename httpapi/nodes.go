package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

// handleQueryNodes serves GET /nodes: status/limit/offset filters, with
// per-row redaction applied for agent callers per spec.md §4.4.
func (s *Server) handleQueryNodes(c echo.Context) error {
	actor, _ := actorFrom(c)

	q := ctxtypes.NodeQuery{}
	if status := c.QueryParam("status"); status != "" {
		q.Status = []ctxtypes.NodeStatus{ctxtypes.NodeStatus(status)}
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.Limit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		q.Offset = offset
	}

	rows, result, err := s.Mediator.QueryNodes(actor, q)
	if err != nil {
		return writeError(c, err)
	}

	nodes := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if row.Stub != nil {
			nodes = append(nodes, row.Stub)
			continue
		}
		nodes = append(nodes, row.Node)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"nodes":   nodes,
		"total":   result.Total,
		"limit":   result.Limit,
		"offset":  result.Offset,
		"hasMore": result.HasMore,
	})
}

// handleGetNode serves GET /nodes/:id, returning either the node or a
// redacted stub per the sensitivity predicate.
func (s *Server) handleGetNode(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	result, err := s.Mediator.ReadNode(actor, id)
	if err != nil {
		return writeError(c, err)
	}
	if result.Node == nil && result.Stub == nil {
		return writeError(c, store.NotFound("node %s not found", id))
	}
	if result.Stub != nil {
		return c.JSON(http.StatusOK, result.Stub)
	}
	return c.JSON(http.StatusOK, result.Node)
}

// handleNodeProvenance serves GET /nodes/:id/provenance: the audit trail
// scoped to this resource id, in append order.
func (s *Server) handleNodeProvenance(c echo.Context) error {
	id := c.Param("id")
	events, err := s.Mediator.Store.QueryAudit(store.AuditQuery{ResourceID: &id})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceId": id,
		"events":     events,
	})
}
