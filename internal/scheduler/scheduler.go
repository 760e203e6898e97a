// Package scheduler runs periodic aggregation cycles: every registered
// polling handler is invoked concurrently, and the collected results are
// persisted as one cycle document.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"newsfetcher/internal/dispatcher"
	"newsfetcher/internal/poll"
)

// Result is the outcome of one handler's poll within a cycle.
type Result struct {
	Handler string
	Payload json.RawMessage
	Err     error
}

// CycleDocument is the persisted record of one completed aggregation cycle.
// Payloads are kept as raw JSON text; document mapping beyond that is not
// this layer's concern.
type CycleDocument struct {
	RanAt   time.Time        `bson:"ran_at"`
	Results []ResultDocument `bson:"results"`
}

// ResultDocument is one handler's slot inside a CycleDocument.
type ResultDocument struct {
	Handler string `bson:"handler"`
	Payload string `bson:"payload,omitempty"`
	Error   string `bson:"error,omitempty"`
}

// CycleWriter accepts one document per completed aggregation cycle.
type CycleWriter interface {
	InsertOne(ctx context.Context, doc any) error
}

// Aggregator fans one cycle out across all registered handlers.
type Aggregator struct {
	registry *dispatcher.Registry
	state    *poll.State
	defaults map[string]json.RawMessage
}

// NewAggregator creates an aggregator over the registry and shared state.
func NewAggregator(registry *dispatcher.Registry, state *poll.State) *Aggregator {
	return &Aggregator{
		registry: registry,
		state:    state,
		defaults: make(map[string]json.RawMessage),
	}
}

// SetDefaultParams fixes the parameters a handler is polled with during
// scheduled cycles. Handlers without defaults are skipped.
func (a *Aggregator) SetDefaultParams(handler string, params json.RawMessage) {
	a.defaults[handler] = params
}

// RunCycle polls every handler that has default parameters, concurrently,
// and returns one result per handler in completion order. Handler failures
// are captured per slot; one provider being down never fails the cycle.
func (a *Aggregator) RunCycle(ctx context.Context) []Result {
	names := a.registry.Names()

	var mu sync.Mutex
	results := make([]Result, 0, len(names))

	p := pool.New().WithContext(ctx)
	for _, name := range names {
		params, ok := a.defaults[name]
		if !ok {
			continue
		}
		handler, ok := a.registry.Lookup(name)
		if !ok {
			continue
		}
		p.Go(func(ctx context.Context) error {
			payload, err := handler.Poll(ctx, a.state, params)
			mu.Lock()
			results = append(results, Result{Handler: handler.Name(), Payload: payload, Err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait()

	return results
}

// Scheduler triggers aggregation cycles on a fixed interval.
type Scheduler struct {
	cron     *gocron.Scheduler
	agg      *Aggregator
	writer   CycleWriter
	interval int
}

// New creates a scheduler running one cycle every intervalMinutes. writer
// may be nil, in which case results are logged and dropped.
func New(agg *Aggregator, writer CycleWriter, intervalMinutes int) *Scheduler {
	if intervalMinutes < 1 {
		intervalMinutes = 15
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		agg:      agg,
		writer:   writer,
		interval: intervalMinutes,
	}
}

// Start begins the periodic cycles in the background.
func (s *Scheduler) Start() {
	slog.Info("starting scheduler", "interval_minutes", s.interval)
	s.cron.Every(s.interval).Minutes().Do(func() {
		s.RunOnce(context.Background())
	})
	s.cron.StartAsync()
}

// Stop halts the periodic cycles.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce runs a single aggregation cycle and persists its document.
func (s *Scheduler) RunOnce(ctx context.Context) {
	started := time.Now()
	results := s.agg.RunCycle(ctx)

	doc := CycleDocument{RanAt: started, Results: make([]ResultDocument, 0, len(results))}
	failures := 0
	for _, r := range results {
		rd := ResultDocument{Handler: r.Handler}
		if r.Err != nil {
			rd.Error = r.Err.Error()
			failures++
		} else {
			rd.Payload = string(r.Payload)
		}
		doc.Results = append(doc.Results, rd)
	}
	slog.Info("aggregation cycle completed",
		"handlers", len(results),
		"failures", failures,
		"elapsed", time.Since(started))

	if s.writer == nil {
		return
	}
	if err := s.writer.InsertOne(ctx, doc); err != nil {
		slog.Error("failed to persist cycle document", "error", err)
	}
}
