package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lazypower/discover/internal/logger"
	"github.com/lazypower/discover/internal/reqctx"
	"github.com/lazypower/discover/internal/store"
)

// RandomSource supplies uniform draws in [0, 1) for weight decay.
// Implementations must be safe for concurrent use.
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// seededRandom is a deterministic source guarded for concurrent callers.
type seededRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRandom returns a reproducible RandomSource.
func NewSeededRandom(seed int64) RandomSource {
	return &seededRandom{r: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (s *seededRandom) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// ReportHook is the extension point for moderation. It is called after a
// "report" interaction has been committed. No moderation queue exists yet,
// so the default is a no-op.
type ReportHook interface {
	ItemReported(ctx context.Context, userID string, itemID int64, comment string)
}

// Engine applies feedback, decays scores over time, and serves the
// personalized feed and favorites views.
type Engine struct {
	DB  *store.DB
	log *logger.Logger

	now          func() time.Time
	random       RandomSource
	reportHook   ReportHook
	defaultLimit int
	maxLimit     int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock. Tests use it to pin elapsed time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom replaces the weight-decay random source.
func WithRandom(r RandomSource) Option {
	return func(e *Engine) { e.random = r }
}

// WithReportHook installs a moderation hook for "report" interactions.
func WithReportHook(h ReportHook) Option {
	return func(e *Engine) { e.reportHook = h }
}

// WithFeedLimits sets the default and maximum feed page size.
func WithFeedLimits(defaultLimit, maxLimit int) Option {
	return func(e *Engine) {
		if defaultLimit > 0 {
			e.defaultLimit = defaultLimit
		}
		if maxLimit >= e.defaultLimit {
			e.maxLimit = maxLimit
		}
	}
}

// New creates a new Engine.
func New(db *store.DB, log *logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		DB:           db,
		log:          log.With("component", "engine"),
		now:          time.Now,
		random:       globalRandom{},
		defaultLimit: 20,
		maxLimit:     100,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// logFor returns the engine logger annotated with the request's correlation fields.
func (e *Engine) logFor(ctx context.Context) *logger.Logger {
	if fields := reqctx.LogFields(ctx); len(fields) > 0 {
		return e.log.With(fields...)
	}
	return e.log
}

// StartDecaySweep runs a decay pass for every user on startup and then on
// each interval. Feed reads still trigger their own per-user pass; the sweep
// keeps idle users' countdowns from drifting far behind.
func (e *Engine) StartDecaySweep(interval time.Duration) {
	if interval <= 0 {
		return
	}

	e.runSweep()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runSweep()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctx = reqctx.WithRequestData(ctx, &reqctx.RequestData{RequestID: "sweep-" + reqctx.NewRequestID()})
	if updated, err := e.SweepAll(ctx); err != nil {
		e.logFor(ctx).Error("decay sweep failed", "error", err, "updated", updated)
	} else if updated > 0 {
		e.logFor(ctx).Info("decay sweep complete", "updated", updated)
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}
