// Package service contains the business logic layer of the application.
//
// Handlers parse HTTP and delegate here; this layer validates input, clamps
// limits, owns the global execution slots, and orchestrates the store,
// sandbox, and render pipeline. It returns domain errors (apperror), never
// HTTP status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/render"
	"github.com/patelnilay251/backend-data-forge/internal/sandbox"
	"github.com/patelnilay251/backend-data-forge/internal/store"
)

// Config bounds what a single request may ask for.
type Config struct {
	DefaultTimeout time.Duration // applied when the request names none
	MaxTimeout     time.Duration // requested timeouts are clamped to this
	MaxCodeBytes   int
	MaxConcurrent  int // global cap on simultaneously running snippets
}

// DataService orchestrates uploads, snippet execution, and chart rendering.
type DataService struct {
	store    *store.Store
	sandbox  *sandbox.Sandbox
	renderer *render.Pipeline
	logger   *slog.Logger
	cfg      Config

	slots chan struct{} // counting semaphore across all sessions
}

func NewDataService(st *store.Store, sb *sandbox.Sandbox, rp *render.Pipeline, cfg Config, logger *slog.Logger) *DataService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &DataService{
		store:    st,
		sandbox:  sb,
		renderer: rp,
		logger:   logger,
		cfg:      cfg,
		slots:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// UploadResult describes a freshly loaded dataset.
type UploadResult struct {
	SessionID string
	Name      string
	Summary   dataset.Summary
}

// Upload parses raw CSV bytes and installs them as the session's dataset.
func (s *DataService) Upload(sessionID, name string, raw []byte) (*UploadResult, error) {
	if len(raw) == 0 {
		return nil, apperror.ValidationFailed("file", "uploaded file is empty")
	}

	ds, err := s.store.Load(sessionID, raw)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		SessionID: sessionID,
		Name:      strings.TrimSpace(name),
		Summary:   ds.Summary(dataset.DefaultPreviewRows),
	}, nil
}

// Describe reports the schema of the session's active dataset.
func (s *DataService) Describe(sessionID string) (dataset.Summary, error) {
	return s.store.Describe(sessionID)
}

// Execute runs a snippet against the session's dataset. Runs against the
// same session are serialised; a global semaphore caps total concurrency.
func (s *DataService) Execute(ctx context.Context, sessionID, code string, timeout time.Duration) (*sandbox.Outcome, error) {
	if err := s.checkCode(code); err != nil {
		return nil, err
	}
	timeout = s.clampTimeout(timeout)

	release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	ds, err := s.store.Fetch(sessionID)
	if err != nil {
		return nil, err
	}

	free, err := s.reserveSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer free()

	return s.sandbox.Run(ctx, code, ds, sandbox.Options{TimeLimit: timeout})
}

// Visualize runs a snippet with plotting enabled and returns the encoded
// chart it produced.
func (s *DataService) Visualize(ctx context.Context, sessionID, code string, timeout time.Duration) (*render.Result, error) {
	if err := s.checkCode(code); err != nil {
		return nil, err
	}
	timeout = s.clampTimeout(timeout)

	release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	ds, err := s.store.Fetch(sessionID)
	if err != nil {
		return nil, err
	}

	free, err := s.reserveSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer free()

	return s.renderer.Render(ctx, code, ds, timeout)
}

// QuickChart renders a chart straight from the dataset without user code.
func (s *DataService) QuickChart(ctx context.Context, sessionID, chartType string) (*render.Result, error) {
	release, err := s.store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	ds, err := s.store.Fetch(sessionID)
	if err != nil {
		return nil, err
	}

	free, err := s.reserveSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer free()

	return s.renderer.QuickChart(ds, chartType)
}

func (s *DataService) checkCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed("code", "code is required")
	}
	if len(code) > s.cfg.MaxCodeBytes {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", s.cfg.MaxCodeBytes))
	}
	return nil
}

func (s *DataService) clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return s.cfg.DefaultTimeout
	}
	if timeout > s.cfg.MaxTimeout {
		return s.cfg.MaxTimeout
	}
	return timeout
}

// reserveSlot blocks until an execution slot is free or the request is gone.
func (s *DataService) reserveSlot(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		s.logger.Warn("request abandoned while waiting for an execution slot")
		return nil, fmt.Errorf("waiting for execution slot: %w", ctx.Err())
	}
}
