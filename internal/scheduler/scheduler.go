// Package scheduler implements the RuntimeScheduler (spec §4.7/§5): a
// single dispatcher that multiplexes INTERVAL and DAILY jobs onto a
// bounded worker pool, generalized from the teacher's
// internal/app/services/automation.Scheduler (a ticker-plus-goroutine
// poll loop) to an arbitrary per-job min-heap instead of one shared
// poll interval.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/glebis/telegram-agent-sub002/internal/clock"
	"github.com/glebis/telegram-agent-sub002/internal/coreerrors"
	"github.com/glebis/telegram-agent-sub002/pkg/logger"
)

// Outcome enumerates the per-fire observability outcomes (spec §7).
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeSkippedOverlap Outcome = "skipped_overlap"
	OutcomeError          Outcome = "error"
)

// Event is one structured per-fire observability record (spec §7).
type Event struct {
	Job        string
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    Outcome
	Err        error
}

// Observer receives one Event per fire, skip, or failure.
type Observer func(Event)

// CancelToken is handed to every callback invocation. A later Cancel()
// (name) or Stop() trips it; callbacks are expected to honour it at
// the next reasonable suspension point (spec §4.7).
type CancelToken struct {
	mu        sync.Mutex
	cancelled bool
	ctxCancel context.CancelFunc
}

func newCancelToken() *CancelToken { return &CancelToken{} }

// Cancelled reports whether this token has been tripped.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *CancelToken) trip() {
	t.mu.Lock()
	t.cancelled = true
	cancel := t.ctxCancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Callback is a scheduled job's body. It must honour ctx/tok
// cancellation at suspension points (store/vault/dispatch calls).
type Callback func(ctx context.Context, tok *CancelToken, data map[string]any) error

// JobSpec describes one job to register (spec §3 ScheduledJob).
type JobSpec struct {
	Name              string
	IntervalSeconds   int      // > 0 for an INTERVAL job
	DailyTimes        []string // non-empty "HH:MM" values for a DAILY job
	FirstDelaySeconds int
	Data              map[string]any
	Callback          Callback
}

func (s JobSpec) validate() error {
	if s.Name == "" {
		return coreerrors.NewInvalidScheduleSpec(s.Name, "name must not be empty")
	}
	if s.Callback == nil {
		return coreerrors.NewInvalidScheduleSpec(s.Name, "callback must not be nil")
	}
	isInterval := s.IntervalSeconds > 0
	isDaily := len(s.DailyTimes) > 0
	if isInterval == isDaily {
		return coreerrors.NewInvalidScheduleSpec(s.Name, "exactly one of interval_seconds>0 or a non-empty daily time set is required")
	}
	if isDaily {
		for _, t := range s.DailyTimes {
			if _, err := parseHHMM(t); err != nil {
				return coreerrors.NewInvalidScheduleSpec(s.Name, fmt.Sprintf("invalid daily time %q: %v", t, err))
			}
		}
	}
	return nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute")
	}
	return hour, minute, nil
}

func dailyCronSchedule(hhmm string) (cron.Schedule, error) {
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf("%d %d * * *", minute, hour)
	return cron.ParseStandard(expr)
}

// entry is one internally-scheduled unit: either a whole INTERVAL job
// or one HH:MM sub-job of a DAILY job.
type entry struct {
	name     string
	rootName string
	interval time.Duration // zero for daily entries
	cronSpec cron.Schedule // nil for interval entries
	nextFire time.Time
	seq      uint64
	data     map[string]any
	callback Callback

	running bool
	token   *CancelToken
}

// entryHeap orders by (nextFire, seq) so same-instant fires dispatch
// in registration order (spec §4.7 ordering guarantees).
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if !h[i].nextFire.Equal(h[j].nextFire) {
		return h[i].nextFire.Before(h[j].nextFire)
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler is the RuntimeScheduler (C7): register/cancel/list jobs
// with INTERVAL or DAILY schedules, dispatched on a bounded worker
// pool with per-job overlap back-pressure (spec §4.7).
type Scheduler struct {
	clk          clock.Clock
	log          *logger.Logger
	tickInterval time.Duration
	observer     Observer

	mu      sync.Mutex
	entries map[string]*entry
	order   entryHeap
	seq     uint64

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sem     chan struct{}
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithTickInterval overrides the dispatcher's polling granularity
// (default 1s). Tests use a small value for fast convergence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithWorkerLimit bounds concurrent in-flight callback invocations
// (default 16).
func WithWorkerLimit(n int) Option {
	return func(s *Scheduler) { s.sem = make(chan struct{}, n) }
}

// WithObserver registers the per-fire Event sink (spec §7).
func WithObserver(obs Observer) Option {
	return func(s *Scheduler) { s.observer = obs }
}

// New constructs a Scheduler. clk is the injected time source so
// tests can drive DAILY next-fire computation deterministically.
func New(clk clock.Clock, log *logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NewDefault("scheduler")
	}
	s := &Scheduler{
		clk:          clk,
		log:          log,
		tickInterval: time.Second,
		entries:      make(map[string]*entry),
		sem:          make(chan struct{}, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule inserts or replaces a job by name (spec §4.7). For a DAILY
// job, each HH:MM is registered as an independent sub-job
// "<name>_HH:MM" (spec §4.7/§8).
func (s *Scheduler) Schedule(spec JobSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(spec.Name)

	now := s.clk.Now()
	firstDelay := time.Duration(spec.FirstDelaySeconds) * time.Second

	if spec.IntervalSeconds > 0 {
		e := &entry{
			name:     spec.Name,
			rootName: spec.Name,
			interval: time.Duration(spec.IntervalSeconds) * time.Second,
			nextFire: now.Add(firstDelay),
			data:     spec.Data,
			callback: spec.Callback,
		}
		s.registerLocked(e)
		return nil
	}

	for _, hhmm := range spec.DailyTimes {
		cs, err := dailyCronSchedule(hhmm)
		if err != nil {
			return coreerrors.NewInvalidScheduleSpec(spec.Name, err.Error())
		}
		name := spec.Name + "_" + hhmm
		next := cs.Next(now)
		if firstDelay > 0 && now.Add(firstDelay).Before(next) {
			next = now.Add(firstDelay)
		}
		e := &entry{
			name:     name,
			rootName: spec.Name,
			cronSpec: cs,
			nextFire: next,
			data:     spec.Data,
			callback: spec.Callback,
		}
		s.registerLocked(e)
	}
	return nil
}

func (s *Scheduler) registerLocked(e *entry) {
	s.seq++
	e.seq = s.seq
	s.entries[e.name] = e
	heap.Push(&s.order, e)
}

// Cancel removes every entry named name or name_<suffix> (spec §4.7).
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(name)
}

func (s *Scheduler) cancelLocked(name string) {
	prefix := name + "_"
	var toRemove []string
	for n, e := range s.entries {
		if n == name || strings.HasPrefix(n, prefix) {
			toRemove = append(toRemove, n)
			if e.token != nil {
				e.token.trip()
			}
		}
	}
	for _, n := range toRemove {
		delete(s.entries, n)
	}
	if len(toRemove) == 0 {
		return
	}
	rebuilt := make(entryHeap, 0, len(s.order))
	for _, e := range s.order {
		if cur, ok := s.entries[e.name]; ok && cur == e {
			rebuilt = append(rebuilt, e)
		}
	}
	heap.Init(&rebuilt)
	s.order = rebuilt
}

// List returns every currently registered internal entry name
// (DAILY sub-jobs appear individually), sorted for deterministic
// inspection.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for n := range s.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Start begins the dispatcher loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.dispatchDue(runCtx)
			}
		}
	}()
	s.log.Info("scheduler started")
	return nil
}

// Stop cancels every outstanding token and drains the worker pool
// within ctx's deadline (spec §5: 30-second budget at the caller
// layer; this method honours whatever deadline ctx carries).
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	for _, e := range s.entries {
		if e.token != nil {
			e.token.trip()
		}
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

// dispatchDue pops every entry due at or before now, reschedules each
// for its next fire, and dispatches in heap order (fire time, then
// registration order) onto the bounded worker pool. An entry still
// running from a previous fire is skipped, not queued (spec §5
// backpressure).
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.clk.Now()

	s.mu.Lock()
	var due []*entry
	for len(s.order) > 0 && !s.order[0].nextFire.After(now) {
		e := heap.Pop(&s.order).(*entry)
		if _, ok := s.entries[e.name]; !ok {
			continue // cancelled since it was queued
		}
		due = append(due, e)
		e.nextFire = s.computeNext(e, now)
		heap.Push(&s.order, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.dispatchOne(ctx, e, now)
	}
}

func (s *Scheduler) computeNext(e *entry, now time.Time) time.Time {
	if e.cronSpec != nil {
		return e.cronSpec.Next(now)
	}
	return now.Add(e.interval)
}

func (s *Scheduler) dispatchOne(ctx context.Context, e *entry, firedAt time.Time) {
	s.mu.Lock()
	if e.running {
		s.mu.Unlock()
		s.emit(Event{Job: e.name, StartedAt: firedAt, Outcome: OutcomeSkippedOverlap})
		s.log.WithField("job", e.name).Warn("scheduler tick skipped: overlap")
		return
	}
	e.running = true
	tok := newCancelToken()
	e.token = tok
	callback := e.callback
	data := e.data
	s.mu.Unlock()

	s.sem <- struct{}{}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()

		callCtx, cancel := context.WithCancel(ctx)
		tok.mu.Lock()
		tok.ctxCancel = cancel
		tok.mu.Unlock()
		defer cancel()

		start := s.clk.Now()
		err := callback(callCtx, tok, data)
		dur := s.clk.Now().Sub(start)

		s.mu.Lock()
		e.running = false
		s.mu.Unlock()

		outcome := OutcomeOK
		if tok.Cancelled() {
			outcome = OutcomeError
			if err == nil {
				err = coreerrors.ErrCancelled
			}
		} else if err != nil {
			outcome = OutcomeError
		}
		s.emit(Event{Job: e.name, StartedAt: start, Duration: dur, Outcome: outcome, Err: err})
		if err != nil {
			s.log.WithField("job", e.name).WithError(err).Warn("scheduler callback failed")
		}
	}()
}

func (s *Scheduler) emit(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}
