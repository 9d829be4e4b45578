package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// targetOpener connects to the target store for one run.
type targetOpener func(ctx context.Context, cfg *MigrationConfig) (Target, error)

func openTarget(ctx context.Context, cfg *MigrationConfig) (Target, error) {
	if cfg.DryRun {
		return newMemoryTarget(), nil
	}
	t, err := connectMongo(ctx, cfg.Target.URI, cfg.Target.Timeout)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RunReport describes one pipeline invocation.
type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	SourceType string
	Source     string
	Target     string
	Namespace  string
	Mode       WriteMode
	DryRun     bool
	Documents  int
	Results    []LoadResult
	Err        error
}

// Succeeded reports whether every collection was written and verified.
func (r *RunReport) Succeeded() bool {
	if r.Err != nil {
		return false
	}
	for _, res := range r.Results {
		if !res.Succeeded() {
			return false
		}
	}
	return true
}

// runPipeline extracts the whole source, then loads it into the target.
// The target is not contacted when extraction fails.
func runPipeline(ctx context.Context, cfg *MigrationConfig, open targetOpener, logger *slog.Logger) *RunReport {
	report := &RunReport{
		RunID:      uuid.New(),
		StartedAt:  time.Now(),
		SourceType: cfg.Source.Type,
		Source:     maskURI(cfg.Source.DSN),
		Target:     maskURI(cfg.Target.URI),
		Mode:       cfg.Mode,
		DryRun:     cfg.DryRun,
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("run_id", report.RunID.String()))
	defer func() { report.FinishedAt = time.Now() }()

	payload, err := NewExtractor(logger).Extract(ctx, ExtractOptions{
		SourceType:     cfg.Source.Type,
		DSN:            cfg.Source.DSN,
		Namespace:      cfg.Target.Database,
		ExcludeColumns: cfg.ExcludeColumns,
	})
	if err != nil {
		report.Err = err
		return report
	}
	report.Namespace = payload.Namespace
	report.Documents = payload.DocumentCount()
	logger.Info("extracted source",
		slog.Int("collections", len(payload.Collections)),
		slog.Int("documents", report.Documents))

	target, err := open(ctx, cfg)
	if err != nil {
		report.Err = err
		return report
	}
	defer func() {
		if err := target.Close(context.Background()); err != nil {
			logger.Warn("closing target", slog.Any("error", err))
		}
	}()

	report.Results, report.Err = NewLoader(target, logger).Load(ctx, payload, LoadOptions{Mode: cfg.Mode})
	return report
}
