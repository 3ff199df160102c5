// Package refresh pulls subscribed ICS feeds into the event store on a cron
// schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Sink receives the expanded events of one source. *store.Store satisfies it.
type Sink interface {
	ReplaceSource(sourceID string, events []model.Event) (skipped int)
}

// Options configures a Refresher.
type Options struct {
	Sources  []ics.Source
	Location *time.Location

	// Occurrences are expanded from BackfillDays before today to
	// HorizonDays after it.
	BackfillDays int
	HorizonDays  int

	// Schedule is a standard 5-field cron spec.
	Schedule string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Refresher runs fetch, parse, expand and store replacement.
type Refresher struct {
	fetcher *ics.Fetcher
	sink    Sink
	opts    Options

	// running serializes RunOnce so cron ticks never overlap.
	running sync.Mutex
}

// New builds a Refresher. Location defaults to time.Local.
func New(fetcher *ics.Fetcher, sink Sink, opts Options) *Refresher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 7
	}
	if opts.BackfillDays < 0 {
		opts.BackfillDays = 0
	}
	return &Refresher{fetcher: fetcher, sink: sink, opts: opts}
}

// Window returns the expansion range for the current day.
func (r *Refresher) Window() (time.Time, time.Time) {
	now := r.opts.Now().In(r.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.opts.Location)
	return today.AddDate(0, 0, -r.opts.BackfillDays), today.AddDate(0, 0, r.opts.HorizonDays+1)
}

// RunOnce refreshes every source once. A source that fails to fetch or parse
// keeps its previous events; the failures are joined into the returned error.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.running.Lock()
	defer r.running.Unlock()

	if len(r.opts.Sources) == 0 {
		return nil
	}

	started := time.Now()
	rangeStart, rangeEnd := r.Window()

	results, errs := r.fetcher.FetchAll(ctx, r.opts.Sources)
	total := 0
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expanded, err := ics.Expand(parsed, ics.ExpandConfig{
			DisplayLocation: r.opts.Location,
			RangeStart:      rangeStart,
			RangeEnd:        rangeEnd,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh: expand %s: %w", res.Source.ID, err))
			continue
		}
		skipped := r.sink.ReplaceSource(res.Source.ID, expanded.Events)
		total += len(expanded.Events) - skipped
	}

	appLog.Info("refresh completed",
		"sources", len(r.opts.Sources),
		"failed", len(errs),
		"events", total,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return errors.Join(errs...)
}

// Start runs RunOnce immediately and then on every cron tick until ctx is
// cancelled. It returns once the schedule is registered.
func (r *Refresher) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.opts.Location))
	if _, err := c.AddFunc(r.opts.Schedule, func() { r.run(ctx) }); err != nil {
		return fmt.Errorf("refresh: schedule %q: %w", r.opts.Schedule, err)
	}

	go r.run(ctx)
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", r.opts.Schedule, "sources", len(r.opts.Sources))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}

func (r *Refresher) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.RunOnce(ctx); err != nil {
		appLog.Error("refresh failed", err)
	}
}
