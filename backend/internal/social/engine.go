// Package social is the graph mutation and ranking engine: paired-edge
// relationships, entity lifecycle, scored rankings and recommendations.
//
// Every public operation runs in its own bounded transaction and returns a
// typed error from pkg/errors; errors.Outcome maps it to Ok, NotFound,
// Forbidden, Invalid or StoreError. Panics never escape an operation.
package social

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"socialgraph/backend/internal/graphstore"
	"socialgraph/backend/internal/metrics"
	apperrors "socialgraph/backend/pkg/errors"
	"socialgraph/backend/pkg/logger"
)

// maxTxnAttempts bounds retries of write transactions that lost a commit race.
const maxTxnAttempts = 3

type txnFunc func(ctx context.Context, tx graphstore.Txn) error

// Engine runs social graph operations against a store.
type Engine struct {
	store  graphstore.Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewEngine creates an engine. The store's lifecycle stays with the caller.
func NewEngine(store graphstore.Store, opts Options) *Engine {
	return &Engine{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logger.Named("social"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

func (e *Engine) update(ctx context.Context, op string, fn txnFunc) error {
	return e.run(ctx, op, false, fn)
}

func (e *Engine) view(ctx context.Context, op string, fn txnFunc) error {
	return e.run(ctx, op, true, fn)
}

func (e *Engine) run(ctx context.Context, op string, readOnly bool, fn txnFunc) (err error) {
	start := time.Now()
	defer func() {
		outcome := apperrors.Outcome(err)
		metrics.RecordOperation(op, string(outcome), time.Since(start))
		e.logOutcome(op, outcome, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.TxnTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		err = e.attempt(ctx, readOnly, fn)
		if err == nil || readOnly || attempt == maxTxnAttempts || !errors.Is(err, graphstore.ErrConflict) {
			break
		}
		metrics.RecordRetry(op)
		e.logger.Debug("Retrying transaction after conflict", zap.String("operation", op), zap.Int("attempt", attempt))
	}
	return classify(op, err)
}

// attempt runs fn in one transaction. The transaction is always discarded
// unless fn and the commit both succeed.
func (e *Engine) attempt(ctx context.Context, readOnly bool, fn txnFunc) (err error) {
	tx, err := e.store.NewTxn(ctx, readOnly)
	if err != nil {
		return fmt.Errorf("failed to open transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in transaction: %v", r)
		}
		_ = tx.Discard(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	return tx.Commit(ctx)
}

// classify keeps typed errors and turns everything else into a store failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed interface{ Base() *apperrors.BaseError }
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, graphstore.ErrNotFound) {
		return apperrors.NewNotFound("node", op)
	}
	return apperrors.NewStoreFailed(op, err)
}

func (e *Engine) logOutcome(op string, outcome apperrors.Result, err error) {
	switch outcome {
	case apperrors.ResultOk:
	case apperrors.ResultStoreError:
		e.logger.Warn("Operation failed", zap.String("operation", op), zap.Error(err))
	default:
		e.logger.Debug("Operation rejected",
			zap.String("operation", op),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
	}
}

// window clamps a page request to offset and limit.
func (e *Engine) window(p Page) (offset, limit int) {
	limit = p.Size
	if limit <= 0 {
		limit = e.opts.DefaultPageSize
	}
	if limit > e.opts.MaxPageSize {
		limit = e.opts.MaxPageSize
	}
	num := p.Num
	if num < 0 {
		num = 0
	}
	// pages past the addressable range start after every result
	if num > math.MaxInt/limit {
		return math.MaxInt, limit
	}
	return num * limit, limit
}

// slice returns items[offset:offset+limit], clamped.
func slice[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}
