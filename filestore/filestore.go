// Package filestore is the file-backed ContextStore variant: an in-memory
// memstore.Store remains the authoritative state for the lifetime of the
// process, and every mutation except Erase is additionally mirrored to
// per-entity JSON files under a root directory, loaded back at startup.
// Erasure records are held in memory only and are not present after a
// restart. Otherwise semantics, invariants, and ordering guarantees are
// identical to the pure in-memory variant (SPEC_FULL.md §6.3).
//
// Grounded on registry/registry.go's Load()/Save() RWMutex-plus-whole-file
// JSON pattern, and db/bolt/bolt.go's PutJSON/GetJSON for the optional
// derived key index. Directory layout matches original_source/store/
// file_store.rs: nodes/{key}.json, proposals/{id}.json,
// reviews/{proposalId}.json, comments/{proposalId}.json, audit.json,
// revision.json.
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/db/bolt"
	"ctxstore.dev/governed-context/memstore"
	"ctxstore.dev/governed-context/store"
)

const (
	nodesDir     = "nodes"
	proposalsDir = "proposals"
	reviewsDir   = "reviews"
	commentsDir  = "comments"
	auditFile    = "audit.json"
	revisionFile = "revision.json"
	indexFile    = "keys.db"

	bucketNodes     = "nodes"
	bucketProposals = "proposals"
)

// Store wraps memstore.Store and mirrors every mutation to disk. The zero
// value is not usable; use Open.
type Store struct {
	*memstore.Store

	dir   string
	diskMu sync.Mutex // serializes disk writes across concurrent mutating calls

	index *bolt.DB // optional derived key index; nil disables it
}

var _ store.ContextStore = (*Store)(nil)

// Open loads existing state from dir (if any) into a fresh memstore.Store
// and returns a Store that mirrors subsequent mutations back to dir. The
// derived bbolt index at dir/keys.db is opened and rebuilt from the loaded
// state on every open, best-effort; failure to open it leaves the index
// disabled rather than failing startup. Lookups are served by memstore and
// never read the index.
func Open(dir string) (*Store, error) {
	for _, sub := range []string{nodesDir, proposalsDir, reviewsDir, commentsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("filestore: create %s: %w", sub, err)
		}
	}

	snap, err := loadSnapshot(dir)
	if err != nil {
		return nil, err
	}

	inner := memstore.New()
	inner.Restore(snap)

	fs := &Store{Store: inner, dir: dir}

	if idx, err := bolt.Open(filepath.Join(dir, indexFile)); err == nil {
		if ierr := rebuildIndex(idx, snap); ierr == nil {
			fs.index = idx
		} else {
			_ = idx.Close()
		}
	}

	return fs, nil
}

// Close releases the derived index, if one is open. JSON files need no
// explicit close.
func (fs *Store) Close() error {
	if fs.index != nil {
		return fs.index.Close()
	}
	return nil
}

func rebuildIndex(idx *bolt.DB, snap memstore.Snapshot) error {
	if err := idx.CreateBucket(bucketNodes); err != nil {
		return err
	}
	if err := idx.CreateBucket(bucketProposals); err != nil {
		return err
	}
	for key := range snap.Nodes {
		if err := idx.PutJSON(bucketNodes, key, key+".json"); err != nil {
			return err
		}
	}
	for id := range snap.Proposals {
		if err := idx.PutJSON(bucketProposals, id, id+".json"); err != nil {
			return err
		}
	}
	return nil
}

func (fs *Store) indexPut(bucket, key string) {
	if fs.index == nil {
		return
	}
	_ = fs.index.PutJSON(bucket, key, key+".json")
}

// --- mutation overrides: delegate to memstore, then mirror to disk ------

func (fs *Store) CreateProposal(p ctxtypes.Proposal) error {
	if err := fs.Store.CreateProposal(p); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	fs.indexPut(bucketProposals, p.ID)
	return fs.persistProposalAndAudit(p.ID)
}

func (fs *Store) UpdateProposal(id string, patch store.ProposalPatch) error {
	if err := fs.Store.UpdateProposal(id, patch); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	return fs.persistProposalAndAudit(id)
}

func (fs *Store) SubmitReview(r ctxtypes.Review, reeval store.ReviewReevaluator) error {
	if err := fs.Store.SubmitReview(r, reeval); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	if err := fs.persistReviews(r.ProposalID); err != nil {
		return err
	}
	return fs.persistProposalAndAudit(r.ProposalID)
}

func (fs *Store) ApplyProposal(id, appliedBy string) error {
	if err := fs.Store.ApplyProposal(id, appliedBy); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	// Apply can touch an arbitrary subset of nodes; re-syncing all of them
	// keeps the on-disk directory trivially consistent, at the cost of
	// rewriting more files than strictly changed. Acceptable for a
	// governance store's scale and matches the teacher's own
	// whole-file-rewrite persistence style.
	if err := fs.persistAllNodes(); err != nil {
		return err
	}
	if err := fs.persistRevision(); err != nil {
		return err
	}
	return fs.persistProposalAndAudit(id)
}

func (fs *Store) WithdrawProposal(id string) error {
	if err := fs.Store.WithdrawProposal(id); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	return fs.persistProposalAndAudit(id)
}

func (fs *Store) AddProposalComment(proposalID string, c ctxtypes.Comment) error {
	if err := fs.Store.AddProposalComment(proposalID, c); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	return fs.persistComments(proposalID)
}

func (fs *Store) Reset() error {
	if err := fs.Store.Reset(); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	if err := clearDir(filepath.Join(fs.dir, nodesDir)); err != nil {
		return err
	}
	if err := clearDir(filepath.Join(fs.dir, proposalsDir)); err != nil {
		return err
	}
	if err := clearDir(filepath.Join(fs.dir, reviewsDir)); err != nil {
		return err
	}
	if err := clearDir(filepath.Join(fs.dir, commentsDir)); err != nil {
		return err
	}
	if err := fs.persistRevision(); err != nil {
		return err
	}
	return fs.persistAudit()
}

func (fs *Store) AppendAudit(e ctxtypes.AuditEvent) error {
	if err := fs.Store.AppendAudit(e); err != nil {
		return err
	}
	fs.diskMu.Lock()
	defer fs.diskMu.Unlock()
	return fs.persistAudit()
}

// --- disk plumbing -------------------------------------------------------

func (fs *Store) persistProposalAndAudit(id string) error {
	snap := fs.Store.Snapshot()
	p, ok := snap.Proposals[id]
	if !ok {
		return nil
	}
	if err := writeJSONAtomic(filepath.Join(fs.dir, proposalsDir, id+".json"), p); err != nil {
		return err
	}
	fs.indexPut(bucketProposals, id)
	return writeJSONAtomic(filepath.Join(fs.dir, auditFile), snap.Audit)
}

func (fs *Store) persistReviews(proposalID string) error {
	snap := fs.Store.Snapshot()
	return writeJSONAtomic(filepath.Join(fs.dir, reviewsDir, proposalID+".json"), snap.Reviews[proposalID])
}

func (fs *Store) persistComments(proposalID string) error {
	snap := fs.Store.Snapshot()
	return writeJSONAtomic(filepath.Join(fs.dir, commentsDir, proposalID+".json"), snap.Comments[proposalID])
}

func (fs *Store) persistAudit() error {
	snap := fs.Store.Snapshot()
	return writeJSONAtomic(filepath.Join(fs.dir, auditFile), snap.Audit)
}

func (fs *Store) persistRevision() error {
	return writeJSONAtomic(filepath.Join(fs.dir, revisionFile), fs.Store.Revision())
}

func (fs *Store) persistAllNodes() error {
	snap := fs.Store.Snapshot()
	for key, n := range snap.Nodes {
		if err := writeJSONAtomic(filepath.Join(fs.dir, nodesDir, sanitizeKey(key)+".json"), n); err != nil {
			return err
		}
		fs.indexPut(bucketNodes, key)
	}
	return nil
}

// writeJSONAtomic writes value as JSON to a temp file in the same
// directory as path, then renames it into place, so a crash mid-write
// never leaves a partially-written file behind.
func writeJSONAtomic(path string, value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("filestore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("filestore: rename %s: %w", path, err)
	}
	return nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("filestore: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("filestore: remove %s: %w", e.Name(), err)
		}
	}
	return nil
}

// sanitizeKey turns a node's "namespace:id" store key into a filesystem-
// safe filename.
func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == '/' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func loadSnapshot(dir string) (memstore.Snapshot, error) {
	snap := memstore.Snapshot{
		Nodes:      make(map[string]ctxtypes.Node),
		Proposals:  make(map[string]ctxtypes.Proposal),
		Reviews:    make(map[string][]ctxtypes.Review),
		Comments:   make(map[string][]ctxtypes.Comment),
		Redactions: make(map[string]time.Time),
	}

	if err := readEach(filepath.Join(dir, nodesDir), func(data []byte) error {
		var n ctxtypes.Node
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		snap.Nodes[n.ID.Key()] = n
		return nil
	}); err != nil {
		return snap, err
	}

	if err := readEach(filepath.Join(dir, proposalsDir), func(data []byte) error {
		var p ctxtypes.Proposal
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		snap.Proposals[p.ID] = p
		return nil
	}); err != nil {
		return snap, err
	}

	if err := readEachNamed(filepath.Join(dir, reviewsDir), func(name string, data []byte) error {
		var reviews []ctxtypes.Review
		if err := json.Unmarshal(data, &reviews); err != nil {
			return err
		}
		snap.Reviews[name] = reviews
		return nil
	}); err != nil {
		return snap, err
	}

	if err := readEachNamed(filepath.Join(dir, commentsDir), func(name string, data []byte) error {
		var comments []ctxtypes.Comment
		if err := json.Unmarshal(data, &comments); err != nil {
			return err
		}
		snap.Comments[name] = comments
		return nil
	}); err != nil {
		return snap, err
	}

	if data, err := os.ReadFile(filepath.Join(dir, auditFile)); err == nil {
		if err := json.Unmarshal(data, &snap.Audit); err != nil {
			return snap, fmt.Errorf("filestore: parse %s: %w", auditFile, err)
		}
	} else if !os.IsNotExist(err) {
		return snap, fmt.Errorf("filestore: read %s: %w", auditFile, err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, revisionFile)); err == nil {
		if err := json.Unmarshal(data, &snap.Revision); err != nil {
			return snap, fmt.Errorf("filestore: parse %s: %w", revisionFile, err)
		}
	} else if !os.IsNotExist(err) {
		return snap, fmt.Errorf("filestore: read %s: %w", revisionFile, err)
	}

	return snap, nil
}

func readEach(dir string, fn func(data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("filestore: read %s: %w", e.Name(), err)
		}
		if err := fn(data); err != nil {
			return fmt.Errorf("filestore: parse %s: %w", e.Name(), err)
		}
	}
	return nil
}

func readEachNamed(dir string, fn func(name string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("filestore: read %s: %w", e.Name(), err)
		}
		name := e.Name()[:len(e.Name())-len(".json")]
		if err := fn(name, data); err != nil {
			return fmt.Errorf("filestore: parse %s: %w", e.Name(), err)
		}
	}
	return nil
}
