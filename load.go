package main

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LoadOptions controls how collections are written.
type LoadOptions struct {
	Mode WriteMode
}

// Loader writes a MigrationPayload into a Target, one collection at a time.
type Loader struct {
	target Target
	logger *slog.Logger
}

func NewLoader(target Target, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{target: target, logger: logger}
}

// Load writes every collection of the payload and verifies each write by count.
// A per-collection write or verification failure is recorded and the next
// collection is attempted; losing the target aborts the remaining collections.
// The returned error joins every collection failure.
func (l *Loader) Load(ctx context.Context, payload *MigrationPayload, opts LoadOptions) ([]LoadResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	switch opts.Mode {
	case ModeReplace, ModeAppend:
	default:
		return nil, newError(KindInvalidConfig, "unsupported write mode %s", opts.Mode)
	}

	names := payload.Names()
	results := make([]LoadResult, 0, len(names))
	var errs []error
	for _, name := range names {
		res := l.loadCollection(ctx, payload.Namespace, name, payload.Collections[name], opts.Mode)
		results = append(results, res)
		if res.Err == nil {
			l.logger.Info("collection loaded",
				slog.String("collection", payload.Namespace+"."+name),
				slog.Int("documents", res.ActualCount),
				slog.String("mode", opts.Mode.String()))
			continue
		}
		l.logger.Error("collection failed",
			slog.String("collection", payload.Namespace+"."+name),
			slog.String("state", res.State.String()),
			slog.Any("error", res.Err))
		errs = append(errs, res.Err)
		if IsKind(res.Err, KindTargetUnavailable) {
			l.logger.Error("target unavailable, skipping remaining collections",
				slog.Int("skipped", len(names)-len(results)))
			break
		}
	}
	return results, errors.Join(errs...)
}

// loadCollection runs Pending -> Cleared? -> Writing -> Verifying -> Succeeded|Failed.
func (l *Loader) loadCollection(ctx context.Context, namespace, name string, docs []Document, mode WriteMode) LoadResult {
	start := time.Now()
	res := LoadResult{
		Collection:    name,
		Namespace:     namespace,
		ExpectedCount: len(docs),
		Mode:          mode,
		State:         StatePending,
	}
	fail := func(err error) LoadResult {
		res.Err = err
		res.State = StateFailed
		res.Duration = time.Since(start)
		return res
	}

	coll := l.target.Collection(namespace, name)

	var before int64
	switch mode {
	case ModeReplace:
		if err := coll.Clear(ctx); err != nil {
			return fail(asTargetError(err, "clear %s.%s", namespace, name))
		}
		res.State = StateCleared
		l.logger.Debug("collection cleared", slog.String("collection", namespace+"."+name))
	case ModeAppend:
		n, err := coll.Count(ctx)
		if err != nil {
			return fail(asTargetError(err, "count %s.%s", namespace, name))
		}
		before = n
	}

	res.State = StateWriting
	confirmed, err := coll.InsertMany(ctx, docs)
	res.ActualCount = confirmed
	if err != nil {
		return fail(asTargetError(err, "insert into %s.%s", namespace, name))
	}

	res.State = StateVerifying
	if confirmed != res.ExpectedCount {
		return fail(newError(KindVerificationFailure,
			"only %d of %d docs confirmed for %s.%s", confirmed, res.ExpectedCount, namespace, name))
	}
	after, err := coll.Count(ctx)
	if err != nil {
		return fail(asTargetError(err, "count %s.%s", namespace, name))
	}
	res.StoredCount = after - before
	if res.StoredCount != int64(res.ExpectedCount) {
		return fail(newError(KindVerificationFailure,
			"%d of %d docs stored in %s.%s", res.StoredCount, res.ExpectedCount, namespace, name))
	}

	res.State = StateSucceeded
	res.Duration = time.Since(start)
	return res
}

// asTargetError keeps an already classified error and treats anything else
// as a write failure scoped to the collection. A cancelled context always
// aborts the run.
func asTargetError(err error, format string, args ...any) error {
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindTargetUnavailable, err, format, args...)
	}
	return wrapError(KindWriteFailure, err, format, args...)
}
