// Package store keeps the active dataset for each session.
//
// Each session owns at most one dataset. Replacement is an atomic pointer
// swap: concurrent readers observe either the old or the new dataset, never a
// partially-loaded one. The store also owns the per-session execution lock
// that serialises snippet runs against the same session.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
)

// Store maps session IDs to their active dataset.
type Store struct {
	logger     *slog.Logger
	scratchDir string // optional: raw uploads are mirrored here for inspection

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	execMu   sync.Mutex // serialises execute/render for this session
	data     atomic.Pointer[dataset.Dataset]
	lastUsed atomic.Int64 // unix nanos, drives TTL eviction
}

func (e *entry) touch() {
	e.lastUsed.Store(time.Now().UnixNano())
}

// New creates a Store. If scratchDir is non-empty it is created and each
// upload's raw bytes are mirrored there until the session is evicted; the
// on-disk layout is an implementation detail, never part of the API.
func New(scratchDir string, logger *slog.Logger) (*Store, error) {
	if scratchDir != "" {
		if err := os.MkdirAll(scratchDir, 0755); err != nil {
			return nil, fmt.Errorf("creating scratch dir: %w", err)
		}
	}
	return &Store{
		logger:     logger,
		scratchDir: scratchDir,
		sessions:   make(map[string]*entry),
	}, nil
}

// Load parses raw delimited bytes and installs the result as the session's
// active dataset, replacing any prior one atomically. On a parse failure the
// session's existing dataset, if any, is left untouched.
func (s *Store) Load(sessionID string, raw []byte) (*dataset.Dataset, error) {
	ds, err := dataset.Parse(raw)
	if err != nil {
		return nil, err
	}

	e := s.getOrCreate(sessionID)
	e.data.Store(ds)
	e.touch()

	if s.scratchDir != "" {
		path := s.scratchPath(sessionID)
		if werr := os.WriteFile(path, raw, 0600); werr != nil {
			// The in-memory dataset is authoritative; a failed spill is not fatal.
			s.logger.Warn("failed to spill upload to scratch dir",
				slog.String("session", sessionID),
				slog.String("error", werr.Error()),
			)
		}
	}

	s.logger.Info("dataset loaded",
		slog.String("session", sessionID),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.Cols()),
	)
	return ds, nil
}

// Fetch returns the session's active dataset, or NoDatasetError if nothing
// has been uploaded yet.
func (s *Store) Fetch(sessionID string) (*dataset.Dataset, error) {
	e := s.lookup(sessionID)
	if e == nil {
		return nil, apperror.NoDataset(sessionID)
	}
	ds := e.data.Load()
	if ds == nil {
		return nil, apperror.NoDataset(sessionID)
	}
	e.touch()
	return ds, nil
}

// Describe reports the schema of the session's active dataset.
func (s *Store) Describe(sessionID string) (dataset.Summary, error) {
	ds, err := s.Fetch(sessionID)
	if err != nil {
		return dataset.Summary{}, err
	}
	return ds.Summary(0), nil
}

// Acquire takes the session's execution lock and returns its release
// function. At most one snippet runs per session at a time; callers must
// release on every exit path. Fails with NoDatasetError when the session has
// no dataset.
func (s *Store) Acquire(sessionID string) (release func(), err error) {
	e := s.lookup(sessionID)
	if e == nil || e.data.Load() == nil {
		return nil, apperror.NoDataset(sessionID)
	}
	e.execMu.Lock()
	e.touch()
	return func() {
		e.touch()
		e.execMu.Unlock()
	}, nil
}

// Evict removes the session's dataset and any scratch spill. Idempotent.
// A run still holding the session's execution lock is waited out first, so
// a re-upload under the same ID can never overlap it.
func (s *Store) Evict(sessionID string) {
	s.mu.Lock()
	e, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if existed {
		e.execMu.Lock()
		e.execMu.Unlock()
	}

	if s.scratchDir != "" {
		_ = os.Remove(s.scratchPath(sessionID))
	}
	if existed {
		s.logger.Info("session evicted", slog.String("session", sessionID))
	}
}

// Sweep evicts every session idle for longer than ttl and returns how many
// were removed.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl).UnixNano()

	s.mu.Lock()
	var expired []string
	for id, e := range s.sessions {
		if e.lastUsed.Load() < cutoff {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.Evict(id)
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) lookup(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

func (s *Store) getOrCreate(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	return e
}

func (s *Store) scratchPath(sessionID string) string {
	return filepath.Join(s.scratchDir, sessionID+".csv")
}
