package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/watch"
)

type fakeProvider struct {
	tabular.Provider
	jobs    []tabular.Job
	jobsErr error
}

func (f *fakeProvider) Jobs(context.Context) ([]tabular.Job, error) {
	if f.jobsErr != nil {
		return nil, f.jobsErr
	}
	return f.jobs, nil
}

func (f *fakeProvider) Clients(context.Context) ([]tabular.Client, error) {
	return nil, nil
}

type nopSink struct{}

func (nopSink) HandleChange(context.Context, tabular.Client, watch.Event) {}

type staticSessions int

func (s staticSessions) Count() int { return int(s) }

func getHealth(t *testing.T, h http.Handler) (response, int) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body, resp.StatusCode
}

func TestHealthzOK(t *testing.T) {
	provider := &fakeProvider{jobs: []tabular.Job{
		{ID: "1", ClientID: "7", Status: "In Progress"},
		{ID: "2", ClientID: "7", Status: "Pending"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher := watch.New(provider, nopSink{}, time.Minute, logger)
	if err := watcher.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	body, code := getHealth(t, NewHandler(Deps{Watcher: watcher, Sessions: staticSessions(3), Version: "1.2.3"}))

	if code != http.StatusOK {
		t.Errorf("status code = %d", code)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if body.Version != "1.2.3" {
		t.Errorf("version = %q", body.Version)
	}
	if body.Sessions != 3 {
		t.Errorf("sessions = %d", body.Sessions)
	}
	if body.Snapshot != 2 {
		t.Errorf("snapshot_jobs = %d", body.Snapshot)
	}
	if body.PollCycles != 1 {
		t.Errorf("poll_cycles = %d", body.PollCycles)
	}
	if body.LastError != "" {
		t.Errorf("last_error = %q", body.LastError)
	}
	if body.LastCycleAt.IsZero() {
		t.Error("last_cycle_at not set")
	}
}

func TestHealthzDegraded(t *testing.T) {
	provider := &fakeProvider{jobsErr: errors.New("backend down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher := watch.New(provider, nopSink{}, time.Minute, logger)
	if err := watcher.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce succeeded despite provider error")
	}

	body, _ := getHealth(t, NewHandler(Deps{Watcher: watcher, Sessions: staticSessions(0), Version: "dev"}))

	if body.Status != "degraded" {
		t.Errorf("status = %q", body.Status)
	}
	if body.LastError == "" {
		t.Error("last_error empty")
	}
}
