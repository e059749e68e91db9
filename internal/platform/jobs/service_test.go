package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"paycalc/internal/platform/config"
	"paycalc/internal/platform/db"
	"paycalc/internal/platform/querier"
)

func newTestService(t *testing.T, queueSize int) (*Service, func()) {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(context.Background(), sqlDB, config.DriverSQLite); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	svc := New(querier.NewSQL(sqlDB), queueSize, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, func() { sqlDB.Close() }
}

func waitForStatus(t *testing.T, svc *Service, id int64, status string) Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get job %d: %v", id, err)
		}
		if r.Status == status {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach status %s", id, status)
	return Run{}
}

func TestEnqueueRunsJobAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc, closeDB := newTestService(t, 4)
	defer closeDB()

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	run, err := svc.Enqueue(ctx, "payroll_run", 7, func(context.Context) (any, error) {
		return map[string]int{"processedEntries": 2}, nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if run.Status != StatusQueued || run.SubjectID != 7 {
		t.Fatalf("unexpected queued run %+v", run)
	}

	done := waitForStatus(t, svc, run.ID, StatusCompleted)
	if string(done.Details) != `{"processedEntries":2}` {
		t.Fatalf("unexpected details %s", done.Details)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("expected start and completion times, got %+v", done)
	}

	failing, err := svc.Enqueue(ctx, "payroll_run", 8, func(context.Context) (any, error) {
		return nil, errors.New("period is locked")
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	failed := waitForStatus(t, svc, failing.ID, StatusFailed)
	if failed.Error != "period is locked" {
		t.Fatalf("expected error to be recorded, got %q", failed.Error)
	}

	cancel()
	svc.Wait()
}

func TestEnqueueQueueFull(t *testing.T) {
	svc, closeDB := newTestService(t, 1)
	defer closeDB()
	ctx := context.Background()
	noop := func(context.Context) (any, error) { return nil, nil }

	// No worker is running, so the second job cannot be buffered.
	if _, err := svc.Enqueue(ctx, "payroll_run", 1, noop); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, "payroll_run", 2, noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestRunNow(t *testing.T) {
	svc, closeDB := newTestService(t, 1)
	defer closeDB()

	out, err := svc.RunNow(context.Background(), "payroll_run", 3, func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || out != "ok" {
		t.Fatalf("expected ok, got %v (%v)", out, err)
	}
	r, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != StatusCompleted || r.SubjectID != 3 {
		t.Fatalf("unexpected run %+v", r)
	}

	if _, err := svc.Get(context.Background(), 99); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
