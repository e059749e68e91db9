package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paycalc/internal/platform/querier"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrJobNotFound = errors.New("job not found")
)

type RunFunc func(context.Context) (any, error)

// Run is one row of job_runs. SubjectID is the entity the job works on,
// for example a payroll period.
type Run struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	SubjectID   int64           `json:"subjectId"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type Service struct {
	DB     querier.DB
	Logger *slog.Logger

	queue chan job
	done  chan struct{}
	now   func() time.Time
}

type job struct {
	ID        int64
	Type      string
	SubjectID int64
	Run       RunFunc
}

func New(db querier.DB, queueSize int, logger *slog.Logger) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		DB:     db,
		Logger: logger,
		queue:  make(chan job, queueSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Start runs queued jobs until ctx is cancelled. Wait blocks until the
// worker has returned.
func (s *Service) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		s.worker(ctx)
	}()
}

func (s *Service) Wait() {
	<-s.done
}

// Enqueue records a queued run and hands it to the worker. The returned
// run can be polled with Get.
func (s *Service) Enqueue(ctx context.Context, jobType string, subjectID int64, run RunFunc) (Run, error) {
	r, err := s.insert(ctx, jobType, subjectID)
	if err != nil {
		return Run{}, err
	}
	select {
	case s.queue <- job{ID: r.ID, Type: jobType, SubjectID: subjectID, Run: run}:
		return r, nil
	default:
		s.Logger.Warn("job queue full", "jobType", jobType, "subjectId", subjectID)
		s.finish(context.WithoutCancel(ctx), r.ID, nil, ErrQueueFull)
		return Run{}, ErrQueueFull
	}
}

// RunNow records and runs a job on the caller's goroutine.
func (s *Service) RunNow(ctx context.Context, jobType string, subjectID int64, run RunFunc) (any, error) {
	r, err := s.insert(ctx, jobType, subjectID)
	if err != nil {
		return nil, err
	}
	return s.runJob(ctx, job{ID: r.ID, Type: jobType, SubjectID: subjectID, Run: run})
}

func (s *Service) Get(ctx context.Context, id int64) (Run, error) {
	var r Run
	var details *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, job_type, subject_id, status, error, details_json, created_at, started_at, completed_at
    FROM job_runs
    WHERE id = $1
  `, id).Scan(&r.ID, &r.Type, &r.SubjectID, &r.Status, &r.Error, &details, &r.CreatedAt, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, querier.ErrNoRows) {
			return Run{}, ErrJobNotFound
		}
		return Run{}, err
	}
	if details != nil {
		r.Details = json.RawMessage(*details)
	}
	return r, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.Logger.Warn("job run failed", "jobType", j.Type, "jobId", j.ID, "subjectId", j.SubjectID, "err", err)
			}
		}
	}
}

func (s *Service) insert(ctx context.Context, jobType string, subjectID int64) (Run, error) {
	r := Run{Type: jobType, SubjectID: subjectID, Status: StatusQueued, CreatedAt: s.now().UTC()}
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, subject_id, status, created_at)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, r.Type, r.SubjectID, r.Status, r.CreatedAt).Scan(&r.ID); err != nil {
		return Run{}, fmt.Errorf("insert job run: %w", err)
	}
	return r, nil
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs SET status = $1, started_at = $2 WHERE id = $3
  `, StatusRunning, s.now().UTC(), j.ID); err != nil {
		s.Logger.Warn("job run update failed", "jobId", j.ID, "err", err)
	}

	details, err := j.Run(ctx)
	// Record the outcome even when the run was cut short by shutdown.
	s.finish(context.WithoutCancel(ctx), j.ID, details, err)
	return details, err
}

func (s *Service) finish(ctx context.Context, id int64, details any, runErr error) {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	detailsJSON := []byte("{}")
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			s.Logger.Warn("job details marshal failed", "jobId", id, "err", err)
		} else {
			detailsJSON = payload
		}
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, error = $2, details_json = $3, completed_at = $4
    WHERE id = $5
  `, status, msg, string(detailsJSON), s.now().UTC(), id); err != nil {
		s.Logger.Warn("job run update failed", "jobId", id, "err", err)
	}
}
