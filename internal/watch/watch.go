// Package watch recomputes named range queries on a cron schedule and
// publishes the ones whose range moved to explicit subscribers.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"thunderbasics/internal/daterange"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
)

// DefaultSpec recomputes at midnight in the calendar location.
const DefaultSpec = "0 0 * * *"

// Options configures a Watcher.
type Options struct {
	// Spec is a standard five-field cron spec. Empty means DefaultSpec.
	Spec string
}

// Watcher holds the latest resolution of each query.
type Watcher struct {
	cal     daterange.Calendar
	queries []model.Query
	spec    string

	// refreshMu serialises Refresh so publishes arrive in order.
	refreshMu sync.Mutex

	mu     sync.Mutex
	last   map[string]model.Resolved
	subs   []*Subscription
	nextID uint64
}

// New creates a Watcher for queries on cal. Queries are identified by Name.
func New(cal daterange.Calendar, queries []model.Query, opts Options) *Watcher {
	spec := opts.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	qs := make([]model.Query, len(queries))
	copy(qs, queries)
	return &Watcher{
		cal:     cal,
		queries: qs,
		spec:    spec,
		last:    make(map[string]model.Resolved, len(qs)),
	}
}

// Subscription is a registered change callback. It stays registered until
// Close is called.
type Subscription struct {
	w  *Watcher
	id uint64
	fn func([]model.Resolved)

	// mu is held while fn runs, so Close waits for an in-flight delivery.
	mu     sync.Mutex
	closed bool
}

// Subscribe registers fn to receive every non-empty batch of changed
// results. fn runs on the goroutine calling Refresh and must not call Close
// on its own subscription.
func (w *Watcher) Subscribe(fn func([]model.Resolved)) *Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	s := &Subscription{w: w, id: w.nextID, fn: fn}
	w.subs = append(w.subs, s)
	return s
}

// Close unregisters the subscription. Once Close returns the callback is
// never invoked again. Calling Close more than once is a no-op.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subs {
		if sub.id == s.id {
			w.subs = append(w.subs[:i:i], w.subs[i+1:]...)
			break
		}
	}
}

func (s *Subscription) deliver(changed []model.Resolved) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.fn(changed)
}

// Refresh resolves every query for now and returns the results whose range
// differs from the previous refresh, in query order. Subscribers receive the
// same slice when it is non-empty. Queries the calendar cannot resolve are
// logged and keep their previous result.
func (w *Watcher) Refresh(now time.Time) []model.Resolved {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	ref := w.cal.In(now)
	changed := make([]model.Resolved, 0, len(w.queries))

	w.mu.Lock()
	for _, q := range w.queries {
		res, ok := q.Resolve(w.cal, ref)
		if !ok {
			appLog.Error("watch: query not resolvable", errors.New("invalid calendar"),
				"query", q.Name, "reference", ref.Format(time.RFC3339))
			continue
		}
		prev, seen := w.last[q.Name]
		w.last[q.Name] = res
		if seen && sameRange(prev.Range, res.Range) {
			continue
		}
		changed = append(changed, res)
	}
	subs := make([]*Subscription, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	if len(changed) == 0 {
		appLog.Debug("watch: refresh without changes", "reference", ref.Format(time.RFC3339))
		return changed
	}

	appLog.Info("watch: ranges changed", "count", len(changed), "subscribers", len(subs))
	for _, s := range subs {
		s.deliver(changed)
	}
	return changed
}

// Snapshot returns the latest result of every resolved query, in query order.
func (w *Watcher) Snapshot() []model.Resolved {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Resolved, 0, len(w.last))
	for _, q := range w.queries {
		if res, ok := w.last[q.Name]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Start refreshes once immediately, then on every tick of the cron spec in
// the calendar location. It blocks until ctx is cancelled and any running
// refresh has finished.
func (w *Watcher) Start(ctx context.Context) error {
	loc := w.cal.In(time.Now()).Location()
	logger := cronLogger{}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(w.spec, func() { w.Refresh(w.now()) }); err != nil {
		return fmt.Errorf("watch: schedule %q: %w", w.spec, err)
	}

	appLog.Info("watch: starting", "spec", w.spec, "timezone", loc.String(), "queries", len(w.queries))
	w.Refresh(w.now())

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("watch: stopped")
	return nil
}

func (w *Watcher) now() time.Time {
	if w.cal.Now != nil {
		return w.cal.Now()
	}
	return time.Now()
}

func sameRange(a, b daterange.Range) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// cronLogger routes cron's own logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
