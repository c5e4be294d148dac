// Package watch polls the job register and detects per-job changes by
// diffing against an in-memory snapshot of the previous cycle.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/halroad/progressbot/internal/tabular"
)

// EventType classifies a detected change.
type EventType int

const (
	// EventNew fires when a job appears that the snapshot has never seen.
	EventNew EventType = iota
	// EventStatusChanged fires when a known job's status differs from
	// the snapshot.
	EventStatusChanged
)

func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventStatusChanged:
		return "status_changed"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is one detected job change.
type Event struct {
	Type      EventType
	Job       tabular.Job
	OldStatus string
}

// Sink receives detected changes together with the owning client.
type Sink interface {
	HandleChange(ctx context.Context, client tabular.Client, ev Event)
}

// snapshotEntry is the per-job state remembered between cycles.
type snapshotEntry struct {
	status   string
	title    string
	clientID string
}

// Stats is a point-in-time view of the watcher, exposed for health
// reporting.
type Stats struct {
	Seeded    bool
	Tracked   int
	Cycles    int64
	Events    int64
	LastCycle time.Time
	LastError string
}

// Watcher drives poll cycles over the job register.
type Watcher struct {
	provider tabular.Provider
	sink     Sink
	interval time.Duration
	logger   *slog.Logger

	// cycleMu serializes poll cycles; an overlapping timer firing is
	// skipped rather than queued.
	cycleMu sync.Mutex

	mu       sync.Mutex
	snapshot map[string]snapshotEntry
	seeded   bool
	stats    Stats
}

// New creates a Watcher polling provider every interval.
func New(provider tabular.Provider, sink Sink, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		provider: provider,
		sink:     sink,
		interval: interval,
		logger:   logger,
		snapshot: make(map[string]snapshotEntry),
	}
}

// Run polls until ctx is cancelled. The first cycle runs immediately
// and seeds the snapshot without emitting events.
func (w *Watcher) Run(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("poll cycle failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("poll cycle failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single poll cycle. A cycle still in flight makes
// this call a no-op. Provider errors abort the cycle and leave the
// snapshot untouched; the next cycle retries from scratch.
func (w *Watcher) RunOnce(ctx context.Context) error {
	if !w.cycleMu.TryLock() {
		w.logger.Warn("previous poll cycle still running, skipping")
		return nil
	}
	defer w.cycleMu.Unlock()

	jobs, err := w.provider.Jobs(ctx)
	if err != nil {
		w.recordCycle(err)
		return fmt.Errorf("listing jobs: %w", err)
	}

	w.mu.Lock()
	seeded := w.seeded
	events := make([]Event, 0)
	for _, job := range jobs {
		last, known := w.snapshot[job.ID]
		switch {
		case !known:
			if seeded {
				events = append(events, Event{Type: EventNew, Job: job})
			}
		case last.status != job.Status:
			events = append(events, Event{Type: EventStatusChanged, Job: job, OldStatus: last.status})
		}
	}
	w.mu.Unlock()

	// Resolve owning clients before the snapshot advances. A failed
	// lookup aborts the whole cycle with the snapshot untouched, so the
	// next cycle re-detects and retries every event found here.
	var byID map[string]tabular.Client
	if len(events) > 0 {
		clients, err := w.provider.Clients(ctx)
		if err != nil {
			w.recordCycle(err)
			return fmt.Errorf("listing clients: %w", err)
		}
		byID = make(map[string]tabular.Client, len(clients))
		for _, c := range clients {
			byID[c.ID] = c
		}
	}

	w.mu.Lock()
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		seen[job.ID] = struct{}{}
		// The snapshot always tracks the latest truth, even when no
		// event fired.
		w.snapshot[job.ID] = snapshotEntry{status: job.Status, title: job.Title, clientID: job.ClientID}
	}
	// Disappeared records are kept so a reappearance is not re-announced.
	for id := range w.snapshot {
		if _, ok := seen[id]; !ok {
			w.logger.Debug("job absent from poll, keeping snapshot entry", "job_id", id)
		}
	}
	w.seeded = true
	w.stats.Events += int64(len(events))
	w.mu.Unlock()

	if !seeded {
		w.logger.Info("snapshot seeded", "jobs", len(jobs))
		w.recordCycle(nil)
		return nil
	}

	for _, ev := range events {
		client, ok := byID[ev.Job.ClientID]
		if !ok {
			w.logger.Debug("job has no known client", "job_id", ev.Job.ID, "client_id", ev.Job.ClientID)
			continue
		}
		w.sink.HandleChange(ctx, client, ev)
	}

	w.recordCycle(nil)
	return nil
}

func (w *Watcher) recordCycle(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Cycles++
	w.stats.LastCycle = time.Now()
	if err != nil {
		w.stats.LastError = err.Error()
	} else {
		w.stats.LastError = ""
	}
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.stats
	s.Seeded = w.seeded
	s.Tracked = len(w.snapshot)
	return s
}
