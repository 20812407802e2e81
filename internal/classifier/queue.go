package classifier

import (
	"context"
	"image"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/autolabelhq/autolabel-go/internal/errors"
)

// Dispatcher wraps a classifier with a bounded-concurrency admission gate and
// a per-invocation timeout. The gate is sized to the inference backend's
// capacity so unrelated batches queue here instead of piling up on the
// backend, and a stuck invocation cannot block a batch indefinitely.
type Dispatcher struct {
	classifier Interface
	sem        *semaphore.Weighted
	timeout    time.Duration
}

// NewDispatcher creates a dispatcher allowing at most concurrency simultaneous
// invocations, each bounded by timeout.
func NewDispatcher(c Interface, concurrency int, timeout time.Duration) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		classifier: c,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		timeout:    timeout,
	}
}

// Classify implements Interface. It waits for a free slot, then invokes the
// wrapped classifier under the configured timeout.
func (d *Dispatcher) Classify(ctx context.Context, img image.Image, labels []string) (Distribution, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryTimeout).
			Build()
	}
	defer d.sem.Release(1)

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	dist, err := d.classifier.Classify(callCtx, img, labels)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, errors.Newf("classification timed out after %s", d.timeout).
				Component("classifier").
				Category(errors.CategoryTimeout).
				Timing("classify", time.Since(start)).
				Build()
		}
		return nil, err
	}
	return dist, nil
}
