package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
	"github.com/spotivault/spotivault/internal/monitoring"
)

// JobStatus is the lifecycle state of a one-shot download
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// Job is a one-shot download of an arbitrary URL, outside the tracked
// playlist set. Jobs have no metadata refresh and no per-track state; the
// downloader either finishes or it does not.
type Job struct {
	mu sync.Mutex

	ID           string
	URL          string
	Dir          string
	Status       JobStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	Logs         []library.LogEntry
}

// JobSummary is a snapshot projection of a job with no live references
type JobSummary struct {
	ID           string             `json:"id"`
	URL          string             `json:"url"`
	Status       JobStatus          `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	CompletedAt  *time.Time         `json:"completed_at"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Logs         []library.LogEntry `json:"logs,omitempty"`
}

// appendLog appends a timestamped line to the bounded log ring
func (j *Job) appendLog(stream, line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Logs = append(j.Logs, library.LogEntry{Time: time.Now(), Stream: stream, Line: line})
	if len(j.Logs) > library.LogCapacity {
		j.Logs = j.Logs[len(j.Logs)-library.LogCapacity:]
	}
}

func (j *Job) finish(status JobStatus, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	j.ErrorMessage = message
}

// Snapshot returns a detached copy of the job state. Logs are included only
// when withLogs is set.
func (j *Job) Snapshot(withLogs bool) JobSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := JobSummary{
		ID:           j.ID,
		URL:          j.URL,
		Status:       j.Status,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
		ErrorMessage: j.ErrorMessage,
	}
	if withLogs {
		s.Logs = append([]library.LogEntry(nil), j.Logs...)
	}
	return s
}

func (j *Job) completedStamp() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.CompletedAt
}

// JobRegistry tracks one-shot downloads. Finished jobs linger until the
// cleanup scheduler expires them.
type JobRegistry struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    []string
	root     string
	launcher Launcher
	logger   *zap.Logger
}

// NewJobRegistry creates a job registry rooted under downloadRoot
func NewJobRegistry(downloadRoot string, launcher Launcher, logger *zap.Logger) *JobRegistry {
	return &JobRegistry{
		jobs:     make(map[string]*Job),
		root:     filepath.Join(downloadRoot, "jobs"),
		launcher: launcher,
		logger:   logger,
	}
}

// Start creates a job and launches the downloader for it. The job is
// registered even when the launch fails so the failure stays inspectable.
func (r *JobRegistry) Start(ctx context.Context, url string) (*Job, error) {
	if url == "" {
		return nil, apperrors.NewValidationError("url is required")
	}

	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    JobRunning,
		CreatedAt: time.Now(),
	}
	job.Dir = filepath.Join(r.root, job.ID)

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	r.mu.Unlock()

	proc, err := r.launcher.Start(ctx, url, job.Dir, job.appendLog)
	if err != nil {
		job.finish(JobError, err.Error())
		monitoring.RecordError(string(apperrors.GetErrorType(err)))
		r.logger.Error("failed to launch job downloader",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return job, err
	}

	r.logger.Info("job started",
		zap.String("job_id", job.ID),
		zap.String("url", url))

	go r.await(job, proc)
	return job, nil
}

func (r *JobRegistry) await(job *Job, proc *Process) {
	<-proc.Done()

	code := proc.ExitCode()
	if code == 0 {
		job.finish(JobCompleted, "")
		r.logger.Info("job completed", zap.String("job_id", job.ID))
	} else {
		exitErr := apperrors.NewProcessExitError(code)
		job.finish(JobError, exitErr.Message)
		monitoring.RecordError(string(apperrors.ErrTypeProcessExit))
		r.logger.Warn("job failed",
			zap.String("job_id", job.ID),
			zap.Int("exit_code", code))
	}
}

// Get returns the job by id
func (r *JobRegistry) Get(id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("job %s not found", id))
	}
	return job, nil
}

// Summaries returns snapshots of all jobs in creation order
func (r *JobRegistry) Summaries() []JobSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobSummary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].Snapshot(false))
	}
	return out
}

// Count returns the number of tracked jobs
func (r *JobRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// remove drops the job from the registry
func (r *JobRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ExpiryTargets exposes finished jobs to the cleanup scheduler. Unlike
// playlists, expired jobs are removed outright: directory and registry entry.
func (r *JobRegistry) ExpiryTargets() []library.ExpiryTarget {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	targets := make([]library.ExpiryTarget, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(id)
		if err != nil {
			continue
		}
		targets = append(targets, library.ExpiryTarget{
			ID:        job.ID,
			Kind:      "job",
			ContentAt: job.completedStamp(),
			Evict: func() error {
				if err := os.RemoveAll(job.Dir); err != nil {
					return apperrors.NewFileSystemError(fmt.Sprintf("failed to remove %s", job.Dir), err)
				}
				r.remove(job.ID)
				return nil
			},
		})
	}
	return targets
}
