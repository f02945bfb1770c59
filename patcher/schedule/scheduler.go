// Package schedule decides when a rescan runs: once on start, once after a
// fixed delay for slow-rendering pages, and once per debounced burst of DOM
// mutations. Rescans never overlap.
package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hazyhaar/statusfixer/dom"
	"github.com/hazyhaar/statusfixer/idgen"
)

// Trigger names what caused a rescan.
type Trigger string

const (
	TriggerLoad     Trigger = "load"
	TriggerDelayed  Trigger = "delayed"
	TriggerMutation Trigger = "mutation"
	TriggerManual   Trigger = "manual"
)

// RescanFunc runs one rescan. id correlates its log lines.
type RescanFunc func(id string, trigger Trigger)

// Config controls a Scheduler.
type Config struct {
	// InitialDelay is the wait before the catch-up rescan. Default: 1s.
	InitialDelay time.Duration
	// Debounce is the quiet period after the last mutation. Default: 100ms.
	Debounce time.Duration

	Clock clockwork.Clock
	// IDs names each rescan. Default: idgen.Default.
	IDs    idgen.Generator
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = 100 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.IDs == nil {
		c.IDs = idgen.Default
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Scheduler owns the delayed timer and the single pending debounce timer.
type Scheduler struct {
	cfg    Config
	rescan RescanFunc

	// runMu serializes rescans.
	runMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	debounce clockwork.Timer
	delayed  clockwork.Timer
	unsub    func()
	started  bool
	stopped  bool

	runs atomic.Uint64
}

// New creates a Scheduler. Nothing runs until Start or Notify.
func New(cfg Config, fn RescanFunc) *Scheduler {
	cfg.defaults()
	return &Scheduler{cfg: cfg, rescan: fn}
}

// Start runs the load rescan, arms the delayed rescan and, when src is not
// nil, subscribes to mutations under root.
func (s *Scheduler) Start(src dom.Observable, root dom.Element) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("schedule: already started")
	}
	s.started = true
	s.mu.Unlock()

	s.run(TriggerLoad)

	s.mu.Lock()
	if !s.stopped {
		s.delayed = s.cfg.Clock.AfterFunc(s.cfg.InitialDelay, func() { s.run(TriggerDelayed) })
	}
	s.mu.Unlock()

	if src == nil || root == nil {
		return nil
	}
	unsub, err := src.ObserveSubtree(root, func([]dom.Mutation) { s.Notify() })
	if err != nil {
		return fmt.Errorf("schedule: observe: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		unsub()
		return nil
	}
	s.unsub = unsub
	return nil
}

// Notify records one mutation batch. The pending debounce timer, if any, is
// replaced so the rescan fires Debounce after the latest call.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.gen++
	gen := s.gen
	s.debounce = s.cfg.Clock.AfterFunc(s.cfg.Debounce, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	s.mu.Unlock()
	s.run(TriggerMutation)
}

// RescanNow runs a rescan synchronously, outside the timer policy.
func (s *Scheduler) RescanNow() {
	s.run(TriggerManual)
}

// Runs counts completed rescans.
func (s *Scheduler) Runs() uint64 {
	return s.runs.Load()
}

// Pending reports whether a debounced rescan is waiting.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounce != nil
}

// Stop cancels both timers and the mutation subscription. A rescan already
// running completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.delayed != nil {
		s.delayed.Stop()
		s.delayed = nil
	}
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Scheduler) run(trigger Trigger) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	id := s.cfg.IDs()
	start := time.Now()
	s.rescan(id, trigger)
	s.runs.Add(1)
	s.cfg.Logger.Debug("schedule: rescan done",
		"id", id, "trigger", trigger, "elapsed", time.Since(start))
}
