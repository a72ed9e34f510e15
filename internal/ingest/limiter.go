package ingest

// limiter.go bounds how many uploads run the pipeline at once. Requests
// beyond the limit wait up to maxWait for a slot, then fail with
// ErrTooManyUploads. Drain lets shutdown wait for running uploads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// ErrTooManyUploads is returned when no upload slot frees up in time.
var ErrTooManyUploads = &core.Error{
	Kind: core.KindInternal,
	Code: core.CodeTooManyUploads,
	Msg:  "too many concurrent uploads, please try again later",
}

const (
	DefaultMaxConcurrentUploads = 5
	DefaultMaxWaitTime          = 30 * time.Second
)

// Limiter is a counting semaphore over upload slots.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows at most maxConcurrent uploads; waiters give up after
// maxWait. Non-positive values use the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	default:
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyUploads
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of uploads holding a slot.
func (l *Limiter) Active() int {
	return int(l.active.Load())
}

// Capacity returns the slot count.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// Drain blocks until no upload holds a slot or ctx ends.
func (l *Limiter) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), errors.New("uploads still running"))
		case <-ticker.C:
		}
	}
	return nil
}
