package cron_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/basket/haxxor-bunny/internal/cron"
	"github.com/basket/haxxor-bunny/internal/persistence"
)

// waitFor polls check at short intervals until it returns true or the deadline
// elapses. This avoids fixed time.Sleep calls that cause flaky tests.
func waitFor(t *testing.T, deadline time.Duration, check func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func openTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "haxxor.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func start(t *testing.T, store *persistence.Store, jobs ...cron.Job) *cron.Scheduler {
	t.Helper()
	sched, err := cron.NewScheduler(cron.Config{
		Store:    store,
		Logger:   slog.Default(),
		Jobs:     jobs,
		Interval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	sched.Start(context.Background())
	return sched
}

func TestScheduler_FiresOnFirstTick(t *testing.T) {
	store := openTestStore(t)
	var runs atomic.Int32
	sched := start(t, store, cron.Job{Name: "cdn-sync", Expr: "*/10 * * * *", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	defer sched.Stop()

	waitFor(t, 3*time.Second, func() bool { return runs.Load() > 0 })

	// Later ticks in the same window must not fire again.
	time.Sleep(200 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Fatalf("expected 1 run, got %d", n)
	}
}

func TestScheduler_NextRunRecorded(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	sched := start(t, store, cron.Job{Name: "cdn-sync", Expr: "*/10 * * * *", Run: func(context.Context) error {
		return errors.New("upstream down")
	}})
	defer sched.Stop()

	// A failing job still advances its schedule.
	var raw string
	waitFor(t, 3*time.Second, func() bool {
		raw, _ = store.KVGet(ctx, "cron.next_run.cdn-sync")
		return raw != ""
	})
	next, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("parse next run %q: %v", raw, err)
	}
	if !next.After(time.Now()) {
		t.Fatalf("expected next run in the future, got %v", next)
	}
	if next.Minute()%10 != 0 {
		t.Fatalf("expected next run minute to be a multiple of 10, got %d", next.Minute())
	}
}

func TestScheduler_FutureRunSkipped(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	if err := store.KVSet(ctx, "cron.next_run.cdn-sync", future); err != nil {
		t.Fatalf("kv set: %v", err)
	}

	var runs atomic.Int32
	sched := start(t, store, cron.Job{Name: "cdn-sync", Expr: "0 * * * *", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	// Asserting a negative needs a brief wait.
	time.Sleep(200 * time.Millisecond)
	sched.Stop()

	if n := runs.Load(); n != 0 {
		t.Fatalf("expected no runs before the recorded next run, got %d", n)
	}
}

func TestNewSchedulerRejectsBadJobs(t *testing.T) {
	run := func(context.Context) error { return nil }
	tests := []struct {
		name string
		job  cron.Job
	}{
		{"bad expression", cron.Job{Name: "x", Expr: "every minute", Run: run}},
		{"six fields", cron.Job{Name: "x", Expr: "0 */5 * * * *", Run: run}},
		{"no name", cron.Job{Expr: "* * * * *", Run: run}},
		{"no run", cron.Job{Name: "x", Expr: "* * * * *"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cron.NewScheduler(cron.Config{Jobs: []cron.Job{tt.job}}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNextRunTime(t *testing.T) {
	after := time.Date(2024, 3, 1, 8, 59, 0, 0, time.UTC)
	got, err := cron.NextRunTime("0 9 * * *", after)
	if err != nil {
		t.Fatalf("NextRunTime: %v", err)
	}
	if want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
