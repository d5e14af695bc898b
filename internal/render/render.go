// Package render turns snippet-produced figures into transmittable images.
//
// The pipeline delegates execution to the sandbox with plotting enabled,
// reads the per-call figure slot, and encodes the result as PNG. Sandbox
// failures pass through with their kind intact; a successful run that never
// produced a chart is a NoFigureError.
package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/patelnilay251/backend-data-forge/internal/apperror"
	"github.com/patelnilay251/backend-data-forge/internal/dataset"
	"github.com/patelnilay251/backend-data-forge/internal/sandbox"
)

// Result is a successfully rendered chart.
type Result struct {
	ImageBytes []byte
	MIMEType   string
	Stdout     string // output the snippet printed while building the chart
}

// Pipeline renders charts from snippets or directly from datasets.
type Pipeline struct {
	sandbox *sandbox.Sandbox
	logger  *slog.Logger
}

func New(sb *sandbox.Sandbox, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sandbox: sb,
		logger:  logger,
	}
}

// Render executes code with plotting symbols available and encodes the
// figure it produces.
func (p *Pipeline) Render(ctx context.Context, code string, ds *dataset.Dataset, timeLimit time.Duration) (*Result, error) {
	out, err := p.sandbox.Run(ctx, code, ds, sandbox.Options{
		TimeLimit: timeLimit,
		Plotting:  true,
	})
	if err != nil {
		return nil, err // ExecutionError / TimeoutError, kind preserved
	}
	if out.Figure == nil {
		return nil, apperror.NoFigure("the snippet did not produce a figure").WithStdout(out.Stdout)
	}

	png, err := Encode(out.Figure)
	if err != nil {
		return nil, apperror.ExecutionFailed("encoding figure: " + err.Error()).WithStdout(out.Stdout)
	}

	p.logger.Info("figure rendered",
		slog.String("kind", string(out.Figure.Kind)),
		slog.Int("bytes", len(png)),
		slog.Duration("duration", out.Duration),
	)
	return &Result{
		ImageBytes: png,
		MIMEType:   MIMEType,
		Stdout:     out.Stdout,
	}, nil
}
