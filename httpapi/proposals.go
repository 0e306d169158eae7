package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

func (s *Server) handleQueryProposals(c echo.Context) error {
	q := ctxtypes.ProposalQuery{}
	if status := c.QueryParam("status"); status != "" {
		q.Status = []ctxtypes.ProposalStatus{ctxtypes.ProposalStatus(status)}
	}
	if creator := c.QueryParam("creator"); creator != "" {
		q.Creator = &creator
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.Limit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil {
		q.Offset = offset
	}

	proposals, err := s.Mediator.Store.QueryProposals(q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, proposals)
}

func (s *Server) handleCreateProposal(c echo.Context) error {
	actor, _ := actorFrom(c)

	var p ctxtypes.Proposal
	if err := c.Bind(&p); err != nil {
		return writeError(c, store.Invalid("malformed proposal body: %v", err))
	}

	created, err := s.Mediator.CreateProposal(actor, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetProposal(c echo.Context) error {
	id := c.Param("id")
	p, err := s.Mediator.Store.GetProposal(id)
	if err != nil {
		return writeError(c, err)
	}
	if p == nil {
		return writeError(c, store.NotFound("proposal %s not found", id))
	}
	return c.JSON(http.StatusOK, p)
}

// proposalPatchWire is the sparse PATCH body: every field independently
// optional. echo's default Bind ignores extra keys, so unknown fields are
// not rejected.
type proposalPatchWire struct {
	Status    *string            `json:"status,omitempty"`
	Rationale *string            `json:"rationale,omitempty"`
	Comments  []ctxtypes.Comment `json:"comments,omitempty"`
}

func (s *Server) handleUpdateProposal(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	var wire proposalPatchWire
	if err := c.Bind(&wire); err != nil {
		return writeError(c, store.Invalid("malformed patch body: %v", err))
	}

	patch := store.ProposalPatch{Rationale: wire.Rationale, Comments: wire.Comments}
	if wire.Status != nil {
		status := ctxtypes.ProposalStatus(*wire.Status)
		patch.Status = &status
	}

	updated, err := s.Mediator.UpdateProposal(actor, id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleGetReviews(c echo.Context) error {
	id := c.Param("id")
	reviews, err := s.Mediator.Store.GetReviewHistory(id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reviews)
}

func (s *Server) handleSubmitReview(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	var r ctxtypes.Review
	if err := c.Bind(&r); err != nil {
		return writeError(c, store.Invalid("malformed review body: %v", err))
	}
	if r.ProposalID == "" {
		r.ProposalID = id
	}
	if r.ProposalID != id {
		return writeError(c, store.Invalid("review proposalId %q does not match path %q", r.ProposalID, id))
	}

	updated, err := s.Mediator.SubmitReview(actor, r)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

type applyRequest struct {
	AppliedBy *string `json:"appliedBy,omitempty"`
}

func (s *Server) handleApplyProposal(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	var req applyRequest
	_ = c.Bind(&req) // empty body is valid; appliedBy defaults to the actor

	appliedBy := ""
	if req.AppliedBy != nil {
		appliedBy = *req.AppliedBy
	}

	applied, err := s.Mediator.ApplyProposal(actor, id, appliedBy)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, applied)
}

func (s *Server) handleWithdrawProposal(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	updated, err := s.Mediator.WithdrawProposal(actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleGetComments(c echo.Context) error {
	id := c.Param("id")
	comments, err := s.Mediator.Store.GetProposalComments(id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, comments)
}

func (s *Server) handleAddComment(c echo.Context) error {
	actor, _ := actorFrom(c)
	id := c.Param("id")

	var comment ctxtypes.Comment
	if err := c.Bind(&comment); err != nil {
		return writeError(c, store.Invalid("malformed comment body: %v", err))
	}

	created, err := s.Mediator.AddComment(actor, id, comment)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}
