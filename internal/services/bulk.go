package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrBatchInFlight is returned when a bulk operation is requested while a
// previous one is still running.
var ErrBatchInFlight = errors.New("bulk: operation already in flight")

const (
	defaultBatchConcurrency = 4
	defaultBatchItemTimeout = 15 * time.Second
)

// BatchFailure records one item that could not be processed.
type BatchFailure struct {
	ID  string `json:"id"`
	Err string `json:"error"`
}

// BatchResult summarises a bulk run. SuccessCount plus the number of
// failures always equals the number of submitted ids.
type BatchResult struct {
	SuccessCount int            `json:"success_count"`
	Failures     []BatchFailure `json:"failures"`
}

// batchProcessor fans a list of ids out over a bounded worker pool. One
// failing item never aborts the rest; each outcome is recorded at the index
// of its input id.
type batchProcessor struct {
	concurrency int
	itemTimeout time.Duration
}

func newBatchProcessor(concurrency int, itemTimeout time.Duration) *batchProcessor {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	if itemTimeout <= 0 {
		itemTimeout = defaultBatchItemTimeout
	}
	return &batchProcessor{concurrency: concurrency, itemTimeout: itemTimeout}
}

func (p *batchProcessor) run(ctx context.Context, ids []string, apply func(context.Context, string) error) BatchResult {
	outcomes := make([]error, len(ids))

	group := errgroup.Group{}
	group.SetLimit(p.concurrency)
	for index, id := range ids {
		group.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, p.itemTimeout)
			defer cancel()
			outcomes[index] = apply(itemCtx, id)
			return nil
		})
	}
	group.Wait()

	result := BatchResult{Failures: []BatchFailure{}}
	for index, err := range outcomes {
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{ID: ids[index], Err: err.Error()})
			continue
		}
		result.SuccessCount++
	}
	return result
}

// inflightGuard serialises bulk runs: a single slot is taken without
// blocking and released when the run finishes.
type inflightGuard struct {
	slot chan struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{slot: make(chan struct{}, 1)}
}

func (g *inflightGuard) acquire() error {
	select {
	case g.slot <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("%w: retry after the current run completes", ErrBatchInFlight)
	}
}

func (g *inflightGuard) release() {
	select {
	case <-g.slot:
	default:
	}
}
