// Package health exposes a small HTTP endpoint reporting process
// liveness and watcher progress.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halroad/progressbot/internal/watch"
)

// SessionCounter reports how many users are signed in.
type SessionCounter interface {
	Count() int
}

// Deps are the collaborators the health report draws from.
type Deps struct {
	Watcher  *watch.Watcher
	Sessions SessionCounter
	Version  string
}

type response struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Sessions    int       `json:"sessions"`
	Snapshot    int       `json:"snapshot_jobs"`
	PollCycles  int64     `json:"poll_cycles"`
	EventsSeen  int64     `json:"events_seen"`
	LastCycleAt time.Time `json:"last_cycle_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// NewHandler builds the health router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		stats := deps.Watcher.Stats()

		status := "ok"
		if stats.LastError != "" {
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response{
			Status:      status,
			Version:     deps.Version,
			Sessions:    deps.Sessions.Count(),
			Snapshot:    stats.Tracked,
			PollCycles:  stats.Cycles,
			EventsSeen:  stats.Events,
			LastCycleAt: stats.LastCycle,
			LastError:   stats.LastError,
		})
	})
	return r
}
