// Package workerpool runs load units on a bounded set of goroutines.
//
// The pool keeps CoreWorkers goroutines alive for its whole life. When the
// queue is full it starts extra workers up to MaxWorkers; an extra worker
// that stays idle for KeepAlive exits. When both the queue and the worker
// allowance are exhausted, Submit blocks until a slot frees up or the caller's
// context ends, which is what keeps a fast producer from buffering a whole
// file in memory.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool is closed")

// Config sizes a Pool.
type Config struct {
	CoreWorkers int
	MaxWorkers  int
	QueueSize   int
	KeepAlive   time.Duration
	Logger      *slog.Logger
}

// DefaultConfig sizes the pool from the machine: NumCPU-2 core workers
// (at least one), twice that at most, and a queue of 100.
func DefaultConfig() Config {
	core := max(1, runtime.NumCPU()-2)
	return Config{
		CoreWorkers: core,
		MaxWorkers:  2 * core,
		QueueSize:   100,
		KeepAlive:   60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CoreWorkers <= 0 {
		c.CoreWorkers = d.CoreWorkers
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 2 * c.CoreWorkers
	}
	if c.MaxWorkers < c.CoreWorkers {
		c.MaxWorkers = c.CoreWorkers
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int
	Queued    int
	Submitted int64
	Completed int64
	Panics    int64
}

// Pool is a bounded worker pool. It is safe for concurrent use.
type Pool struct {
	cfg   Config
	tasks chan func()

	// submitMu is held shared by every Submit and exclusively by Close, so
	// tasks is never closed under a sender.
	submitMu sync.RWMutex
	closed   bool

	mu      sync.Mutex
	workers int

	wg sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// New starts a pool with cfg.CoreWorkers running workers.
// Zero fields of cfg take their DefaultConfig values.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	p := &Pool{
		cfg:   cfg,
		tasks: make(chan func(), cfg.QueueSize),
	}

	p.mu.Lock()
	for i := 0; i < cfg.CoreWorkers; i++ {
		p.startWorker(nil, true)
	}
	p.mu.Unlock()

	return p
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Submit hands task to the pool.
//
// The task is queued when the queue has room, otherwise it starts an extra
// worker if the pool is below MaxWorkers, otherwise Submit blocks until the
// queue has room. It returns ctx.Err() if ctx ends first and ErrClosed once
// the pool is closed. A task that panics is logged and does not take its
// worker down.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return nil
	default:
	}

	p.mu.Lock()
	if p.workers < p.cfg.MaxWorkers {
		p.startWorker(task, false)
		p.mu.Unlock()
		p.submitted.Add(1)
		return nil
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, lets queued and running tasks finish and
// waits for every worker to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.submitMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.submitMu.Unlock()

	p.wg.Wait()
}

// Stats reports current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	return Stats{
		Workers:   workers,
		Queued:    len(p.tasks),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
	}
}

// startWorker must be called with p.mu held.
func (p *Pool) startWorker(first func(), core bool) {
	p.workers++
	p.wg.Add(1)
	go p.work(first, core)
}

func (p *Pool) work(first func(), core bool) {
	defer func() {
		p.mu.Lock()
		p.workers--
		p.mu.Unlock()
		p.wg.Done()
	}()

	if first != nil {
		p.run(first)
	}

	if core {
		for task := range p.tasks {
			p.run(task)
		}
		return
	}

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
			idle.Reset(p.cfg.KeepAlive)
		case <-idle.C:
			return
		}
	}
}

func (p *Pool) run(task func()) {
	defer p.completed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.cfg.Logger.Error("panic in pool task",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
