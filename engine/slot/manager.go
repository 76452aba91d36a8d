package slot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/pkg/logger"
)

type Strategy string

const (
	// StrategyRecheck reads, increments, then re-reads and backs out on overrun.
	StrategyRecheck Strategy = "recheck"
	// StrategyAtomic uses BoundedCounter.TryIncr when the counter offers it.
	StrategyAtomic Strategy = "atomic"
)

// Observer receives slot lifecycle events, typically for metrics.
type Observer interface {
	SlotAcquired(ctx context.Context, waited time.Duration)
	SlotOverrun(ctx context.Context)
	SlotReleased(ctx context.Context)
}

// Manager bounds the number of jobs running at once across every process
// sharing the counter. Waiting jobs poll and are also woken by releases made
// through the same Manager; there is no queue.
type Manager struct {
	counter  Counter
	limit    int64
	poll     time.Duration
	strategy Strategy
	observer Observer

	decrRetries uint64
	decrBackoff time.Duration

	mu        sync.Mutex
	holders   map[string]struct{}
	releasing map[string]struct{}
	// released is closed and replaced on every local release.
	released chan struct{}
}

const (
	defaultDecrRetries = 4
	defaultDecrBackoff = 25 * time.Millisecond
)

type Option func(*Manager)

func WithStrategy(s Strategy) Option {
	return func(m *Manager) {
		m.strategy = s
	}
}

// WithDecrementRetry sets how often a failed decrement is retried and the
// first backoff between tries.
func WithDecrementRetry(retries uint64, backoff time.Duration) Option {
	return func(m *Manager) {
		m.decrRetries = retries
		if backoff > 0 {
			m.decrBackoff = backoff
		}
	}
}

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

func NewManager(counter Counter, limit int, poll time.Duration, opts ...Option) (*Manager, error) {
	if counter == nil {
		return nil, fmt.Errorf("slot counter is required")
	}
	if limit < 1 {
		return nil, fmt.Errorf("slot limit must be at least 1, got %d", limit)
	}
	if poll <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", poll)
	}
	m := &Manager{
		counter:     counter,
		limit:       int64(limit),
		poll:        poll,
		strategy:    StrategyRecheck,
		decrRetries: defaultDecrRetries,
		decrBackoff: defaultDecrBackoff,
		holders:     make(map[string]struct{}),
		releasing:   make(map[string]struct{}),
		released:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	switch m.strategy {
	case StrategyRecheck, StrategyAtomic:
	default:
		return nil, fmt.Errorf("unknown slot strategy %q", m.strategy)
	}
	return m, nil
}

// Acquire blocks until jobID holds a slot or ctx ends.
func (m *Manager) Acquire(ctx context.Context, jobID string) error {
	log := logger.FromContext(ctx).With("job_id", jobID)
	start := time.Now()
	waiting := false
	for {
		released := m.releasedCh()
		admitted, err := m.tryAcquire(ctx, log)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// a store error is treated like a busy slot
			log.Warn("slot counter unavailable, will retry", "error", err)
		}
		if admitted {
			m.mu.Lock()
			m.holders[jobID] = struct{}{}
			m.mu.Unlock()
			waited := time.Since(start)
			if m.observer != nil {
				m.observer.SlotAcquired(ctx, waited)
			}
			log.Info("slot acquired", "waited", waited.Round(time.Millisecond), "limit", m.limit)
			return nil
		}
		if !waiting {
			waiting = true
			log.Info("all slots busy, waiting", "limit", m.limit)
		}
		timer := time.NewTimer(m.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-released:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (m *Manager) tryAcquire(ctx context.Context, log logger.Logger) (bool, error) {
	if bc, ok := m.counter.(BoundedCounter); ok && m.strategy == StrategyAtomic {
		admitted, _, err := bc.TryIncr(ctx, m.limit)
		return admitted, err
	}
	current, err := m.counter.Get(ctx)
	if err != nil {
		return false, err
	}
	if current >= m.limit {
		return false, nil
	}
	// From here on an increment may be outstanding; cancellation of ctx must
	// not strand it.
	store := context.WithoutCancel(ctx)
	after, err := m.counter.Incr(store)
	if err != nil {
		return false, err
	}
	if after <= m.limit && ctx.Err() == nil {
		return true, nil
	}
	if _, err := m.decr(store, log); err != nil {
		return false, fmt.Errorf("undoing slot increment: %w", err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	overrun := core.Errorf(core.SlotRaceOverrun, "counter reached %d with limit %d", after, m.limit)
	log.Debug("slot race lost, backing out", "kind", core.SlotRaceOverrun, "error", overrun)
	if m.observer != nil {
		m.observer.SlotOverrun(ctx)
	}
	return false, nil
}

// Release gives back the slot held by jobID. It reports whether a slot was
// actually returned. Only jobs admitted by Acquire decrement the counter, so a
// job that stopped while still waiting releases nothing and the counter ends
// where it started. A failed decrement is retried; if it still fails the job
// keeps its slot and a later Release tries again.
func (m *Manager) Release(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	_, held := m.holders[jobID]
	_, busy := m.releasing[jobID]
	if !held || busy {
		m.mu.Unlock()
		return false, nil
	}
	m.releasing[jobID] = struct{}{}
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx).With("job_id", jobID)
	n, err := m.decr(ctx, log)
	m.mu.Lock()
	delete(m.releasing, jobID)
	if err == nil {
		delete(m.holders, jobID)
	}
	m.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("releasing slot of job %s: %w", jobID, err)
	}
	m.wake()
	if n < 0 {
		log.Warn("slot counter went negative", "value", n)
	}
	if m.observer != nil {
		m.observer.SlotReleased(ctx)
	}
	log.Info("slot released", "in_use", n)
	return true, nil
}

// decr retries the decrement with a short exponential backoff.
func (m *Manager) decr(ctx context.Context, log logger.Logger) (int64, error) {
	backoff := retry.WithMaxRetries(m.decrRetries, retry.NewExponential(m.decrBackoff))
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (int64, error) {
		n, err := m.counter.Decr(ctx)
		if err != nil {
			log.Warn("slot decrement failed", "error", err)
			return 0, retry.RetryableError(err)
		}
		return n, nil
	})
}

// releasedCh is read before each attempt so a release landing between the
// attempt and the wait is not missed.
func (m *Manager) releasedCh() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func (m *Manager) wake() {
	m.mu.Lock()
	close(m.released)
	m.released = make(chan struct{})
	m.mu.Unlock()
}

// Current reads the shared counter.
func (m *Manager) Current(ctx context.Context) (int64, error) {
	return m.counter.Get(ctx)
}

func (m *Manager) Limit() int {
	return int(m.limit)
}

// Holds reports whether jobID holds a slot acquired through this manager.
func (m *Manager) Holds(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.holders[jobID]
	return ok
}
