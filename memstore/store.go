// Package memstore is the authoritative in-memory ContextStore
// implementation: the sole source of truth lives in RAM behind one
// RWMutex per aggregate (nodes, proposals, reviews, comments, audit,
// revision counter), grounded on statemanager/manager.go's
// RWMutex-guarded-map-plus-deep-copy-on-read idiom. filestore wraps this
// type and mirrors every mutation to disk.
package memstore

import (
	"sort"
	"sync"
	"time"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

// Store is the in-memory ContextStore. The zero value is not usable; use
// New. Lock acquisition order across methods that touch more than one
// aggregate is always revision -> nodes -> proposals -> reviews -> audit,
// matching SPEC_FULL.md §5, to prevent deadlock.
type Store struct {
	revMu    sync.RWMutex
	revision uint64

	nodesMu sync.RWMutex
	nodes   map[string]ctxtypes.Node

	proposalsMu sync.RWMutex
	proposals   map[string]ctxtypes.Proposal

	reviewsMu sync.RWMutex
	reviews   map[string][]ctxtypes.Review

	commentsMu sync.RWMutex
	comments   map[string][]ctxtypes.Comment

	auditMu sync.RWMutex
	audit   []ctxtypes.AuditEvent

	redactionsMu sync.RWMutex
	redactions   map[string]time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:      make(map[string]ctxtypes.Node),
		proposals:  make(map[string]ctxtypes.Proposal),
		reviews:    make(map[string][]ctxtypes.Review),
		comments:   make(map[string][]ctxtypes.Comment),
		redactions: make(map[string]time.Time),
	}
}

var _ store.ContextStore = (*Store)(nil)

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// --- Reads -----------------------------------------------------------

func (s *Store) GetNode(key string) (*ctxtypes.Node, error) {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	n, ok := s.nodes[key]
	if !ok {
		return nil, nil
	}
	clone := n.Clone()
	return &clone, nil
}

func (s *Store) QueryNodes(q ctxtypes.NodeQuery) (ctxtypes.NodeQueryResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()

	statusSet := toStatusSet(q.Status)
	typeSet := toTypeSet(q.Type)

	var matched []ctxtypes.Node
	for _, n := range s.nodes {
		if len(statusSet) > 0 {
			if _, ok := statusSet[n.Status]; !ok {
				continue
			}
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[n.Type]; !ok {
				continue
			}
		}
		if q.Namespace != nil {
			if n.ID.Namespace == nil || *n.ID.Namespace != *q.Namespace {
				continue
			}
		}
		if q.Creator != nil && n.Metadata.CreatedBy != *q.Creator {
			continue
		}
		if q.Modifier != nil && n.Metadata.ModifiedBy != *q.Modifier {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(n.Metadata.Tags, q.Tags) {
			continue
		}
		if q.Search != nil && !matchesSearch(n, *q.Search) {
			continue
		}
		matched = append(matched, n.Clone())
	}

	sortNodes(matched, q.Sort)

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}
	page := matched[offset:end]

	return ctxtypes.NodeQueryResult{
		Nodes:   page,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}, nil
}

func (s *Store) GetAcceptedNodes() ([]ctxtypes.Node, error) {
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	var out []ctxtypes.Node
	for _, n := range s.nodes {
		if n.Status == ctxtypes.NodeAccepted {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetProposal(id string) (*ctxtypes.Proposal, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, nil
	}
	clone := p.Clone()
	return &clone, nil
}

func (s *Store) QueryProposals(q ctxtypes.ProposalQuery) ([]ctxtypes.Proposal, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()

	statusSet := make(map[ctxtypes.ProposalStatus]struct{}, len(q.Status))
	for _, st := range q.Status {
		statusSet[st] = struct{}{}
	}

	var matched []ctxtypes.Proposal
	for _, p := range s.proposals {
		if len(statusSet) > 0 {
			if _, ok := statusSet[p.Status]; !ok {
				continue
			}
		}
		if q.Creator != nil && p.Metadata.CreatedBy != *q.Creator {
			continue
		}
		matched = append(matched, p.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Metadata.CreatedAt < matched[j].Metadata.CreatedAt })

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *Store) GetOpenProposals() ([]ctxtypes.Proposal, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()
	var out []ctxtypes.Proposal
	for _, p := range s.proposals {
		if p.Status == ctxtypes.ProposalOpen {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetReviewHistory(proposalID string) ([]ctxtypes.Review, error) {
	s.reviewsMu.RLock()
	defer s.reviewsMu.RUnlock()
	history := s.reviews[proposalID]
	out := make([]ctxtypes.Review, len(history))
	copy(out, history)
	return out, nil
}

func (s *Store) GetProposalComments(proposalID string) ([]ctxtypes.Comment, error) {
	s.commentsMu.RLock()
	defer s.commentsMu.RUnlock()
	flat := s.comments[proposalID]
	return buildCommentTree(flat), nil
}

func (s *Store) QueryAudit(q store.AuditQuery) ([]ctxtypes.AuditEvent, error) {
	s.auditMu.RLock()
	defer s.auditMu.RUnlock()

	s.redactionsMu.RLock()
	redactions := make(map[string]time.Time, len(s.redactions))
	for k, v := range s.redactions {
		redactions[k] = v
	}
	s.redactionsMu.RUnlock()

	var matched []ctxtypes.AuditEvent
	for _, e := range s.audit {
		if q.Actor != nil && e.ActorID != *q.Actor {
			continue
		}
		if q.Action != nil && e.Action != *q.Action {
			continue
		}
		if q.ResourceID != nil && e.ResourceID != *q.ResourceID {
			continue
		}
		if q.From != nil && e.Timestamp < *q.From {
			continue
		}
		if q.To != nil && e.Timestamp > *q.To {
			continue
		}
		matched = append(matched, applyRedaction(e, redactions))
	}

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	limit := q.Limit
	if limit <= 0 || offset+limit > len(matched) {
		return matched[offset:], nil
	}
	return matched[offset : offset+limit], nil
}

func applyRedaction(e ctxtypes.AuditEvent, redactions map[string]time.Time) ctxtypes.AuditEvent {
	if _, erased := redactions[e.ActorID]; erased {
		e.ActorID = "[redacted]"
	}
	return e
}

// --- helpers -----------------------------------------------------------

func toStatusSet(s []ctxtypes.NodeStatus) map[ctxtypes.NodeStatus]struct{} {
	set := make(map[ctxtypes.NodeStatus]struct{}, len(s))
	for _, v := range s {
		set[v] = struct{}{}
	}
	return set
}

func toTypeSet(t []ctxtypes.NodeType) map[ctxtypes.NodeType]struct{} {
	set := make(map[ctxtypes.NodeType]struct{}, len(t))
	for _, v := range t {
		set[v] = struct{}{}
	}
	return set
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func matchesSearch(n ctxtypes.Node, needle string) bool {
	lower := toLower(needle)
	if containsFold(n.Content, lower) {
		return true
	}
	if n.Title != nil && containsFold(*n.Title, lower) {
		return true
	}
	if n.Description != nil && containsFold(*n.Description, lower) {
		return true
	}
	return false
}

func sortNodes(nodes []ctxtypes.Node, order *ctxtypes.SortOrder) {
	if order == nil {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Metadata.CreatedAt < nodes[j].Metadata.CreatedAt })
		return
	}
	switch *order {
	case ctxtypes.SortCreatedAsc:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Metadata.CreatedAt < nodes[j].Metadata.CreatedAt })
	case ctxtypes.SortCreatedDesc:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Metadata.CreatedAt > nodes[j].Metadata.CreatedAt })
	case ctxtypes.SortModifiedAsc:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Metadata.ModifiedAt < nodes[j].Metadata.ModifiedAt })
	case ctxtypes.SortModifiedDesc:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Metadata.ModifiedAt > nodes[j].Metadata.ModifiedAt })
	}
}

func buildCommentTree(flat []ctxtypes.Comment) []ctxtypes.Comment {
	byID := make(map[string]*ctxtypes.Comment, len(flat))
	var roots []string
	order := make([]string, 0, len(flat))
	for _, c := range flat {
		cc := c
		cc.Replies = nil
		byID[c.ID] = &cc
		order = append(order, c.ID)
	}
	// Walk newest-first so a reply's own replies are attached before it is
	// copied into its parent; prepending keeps creation order.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		c := byID[id]
		if c.ParentID == nil {
			roots = append([]string{id}, roots...)
			continue
		}
		if parent, ok := byID[*c.ParentID]; ok {
			parent.Replies = append([]ctxtypes.Comment{*c}, parent.Replies...)
		} else {
			roots = append([]string{id}, roots...)
		}
	}
	out := make([]ctxtypes.Comment, 0, len(roots))
	for _, id := range roots {
		out = append(out, *byID[id])
	}
	return out
}

