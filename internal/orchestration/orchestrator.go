// Package orchestration drives roster generation jobs through their
// lifecycle: submission, polling, cancellation, finalization and delivery.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// Polling defaults: one status call per second, for about two minutes.
const (
	DefaultPollInterval = time.Second
	DefaultMaxAttempts  = 120
	DefaultPollTimeout  = 15 * time.Second
)

// DefaultCancelMessage is recorded on a job cancelled without a message.
const DefaultCancelMessage = "Cancelled by user"

// Orchestrator owns the local snapshot of every job it has seen and keeps it
// consistent with the service.
type Orchestrator struct {
	client      jobclient.Client
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
	pollTimeout time.Duration
	now         func() time.Time

	mu   sync.Mutex
	jobs map[string]*models.RosterJob
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets the delay between Watch polls.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of polls Watch issues.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithPollTimeout bounds a single status call made by Watch.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator over client.
func New(client jobclient.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		logger:      slog.Default(),
		interval:    DefaultPollInterval,
		maxAttempts: DefaultMaxAttempts,
		pollTimeout: DefaultPollTimeout,
		now:         time.Now,
		jobs:        map[string]*models.RosterJob{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot returns a copy of the local state of a job.
func (o *Orchestrator) Snapshot(jobID string) (*models.RosterJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// Track registers a snapshot obtained elsewhere, such as a saved roster.
func (o *Orchestrator) Track(job *models.RosterJob) {
	if job == nil || job.ID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs[job.ID] = job.Clone()
}

// Submit validates the request and starts a generation job. It returns as
// soon as the service has accepted the job.
func (o *Orchestrator) Submit(ctx context.Context, req jobclient.SubmitRequest) (string, error) {
	if err := jobclient.Validate("submit", req); err != nil {
		return "", err
	}
	id, err := o.client.Submit(ctx, req)
	if err != nil {
		return "", err
	}
	o.Track(&models.RosterJob{
		ID:        id,
		Status:    models.JobPending,
		CreatedAt: o.now(),
		Params: &models.GenerationParams{
			StartDate: req.StartDate,
			EndDate:   req.EndDate(),
			Weeks:     req.Weeks,
			Sites:     req.Sites,
		},
	})
	o.logger.Info("roster job submitted", "job_id", id, "start_date", req.StartDate, "weeks", req.Weeks)
	return id, nil
}

// CheckOverlap lists live or completed jobs whose period intersects the one
// requested. An overlap is a warning for the operator, never a refusal.
func (o *Orchestrator) CheckOverlap(ctx context.Context, req jobclient.SubmitRequest) ([]jobclient.JobSummary, error) {
	if err := jobclient.Validate("submit", req); err != nil {
		return nil, err
	}
	from, to := req.StartDate, req.EndDate()
	jobs, err := o.client.ListJobs(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing jobs for overlap check: %w", err)
	}
	var overlaps []jobclient.JobSummary
	for _, j := range jobs {
		if j.Status == models.JobFailed || j.Status == models.JobCancelled {
			continue
		}
		if j.Overlaps(from, to) {
			overlaps = append(overlaps, j)
		}
	}
	return overlaps, nil
}

// Poll fetches the job's status once and merges it into the local snapshot.
// The merged snapshot is returned.
func (o *Orchestrator) Poll(ctx context.Context, jobID string) (*models.RosterJob, error) {
	remote, err := o.client.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return o.merge(jobID, remote), nil
}

// merge folds a status report into the registry. Failed and cancelled
// snapshots are final, modified shift keys only accumulate, and reports that
// would move the job backwards are ignored.
func (o *Orchestrator) merge(jobID string, remote *models.RosterJob) *models.RosterJob {
	o.mu.Lock()
	defer o.mu.Unlock()

	if remote.ID == "" {
		remote.ID = jobID
	}
	local, ok := o.jobs[jobID]
	if !ok {
		o.jobs[jobID] = remote.Clone()
		return remote
	}
	if local.Status == models.JobFailed || local.Status == models.JobCancelled {
		return local.Clone()
	}
	if !local.Status.CanTransition(remote.Status) {
		o.logger.Warn("ignoring out-of-order status", "job_id", jobID, "local", local.Status, "remote", remote.Status)
		return local.Clone()
	}

	merged := remote.Clone()
	merged.ModifiedShifts = append([]string(nil), local.ModifiedShifts...)
	merged.MarkModified(remote.ModifiedShifts...)
	if merged.Params == nil {
		merged.Params = local.Params
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = local.CreatedAt
	}
	o.jobs[jobID] = merged
	return merged.Clone()
}

// ProgressFunc receives every non-terminal snapshot observed by Watch.
type ProgressFunc func(job *models.RosterJob)

// Watch polls until the job reaches a terminal state, the attempt budget is
// spent, or ctx is cancelled. A poll already in flight when ctx is cancelled
// is allowed to finish; no further poll is scheduled.
//
// A completed job is returned with a nil error. Failed and cancelled jobs are
// returned together with a KindJobFailed or KindJobCancelled error carrying
// the service's message. Transient errors consume an attempt and polling
// continues; other errors end the watch.
func (o *Orchestrator) Watch(ctx context.Context, jobID string, onProgress ProgressFunc) (*models.RosterJob, error) {
	const op = "watch"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, jobID, err)
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.pollTimeout)
		job, err := o.Poll(pollCtx, jobID)
		cancel()

		switch {
		case err != nil && !apperr.Retryable(err):
			return nil, err
		case err != nil:
			lastErr = err
			o.logger.Warn("status poll failed", "job_id", jobID, "attempt", attempt, "error", err)
		default:
			o.logger.Debug("status poll", "job_id", jobID, "attempt", attempt, "status", job.Status, "progress", job.Progress)
			switch job.Status {
			case models.JobCompleted:
				return job, nil
			case models.JobFailed:
				return job, apperr.New(apperr.KindJobFailed, op, failureMessage(job))
			case models.JobCancelled:
				return job, apperr.New(apperr.KindJobCancelled, op, failureMessage(job))
			}
			if onProgress != nil {
				onProgress(job)
			}
		}

		if attempt == o.maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", op, jobID, err)
		}
		timer := time.NewTimer(o.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%s %s: %w", op, jobID, ctx.Err())
		case <-timer.C:
		}
	}

	e := apperr.Newf(apperr.KindTimeout, op, "job %s did not finish after %d polls", jobID, o.maxAttempts)
	e.Cause = lastErr
	return nil, e
}

func failureMessage(job *models.RosterJob) string {
	switch {
	case job.Error != "":
		return job.Error
	case job.Message != "":
		return job.Message
	}
	return "job " + string(job.Status)
}

// current returns the local snapshot, fetching it when the job is unknown.
func (o *Orchestrator) current(ctx context.Context, jobID string) (*models.RosterJob, error) {
	if j, ok := o.Snapshot(jobID); ok {
		return j, nil
	}
	return o.Poll(ctx, jobID)
}

// Cancel asks the service to stop the job and marks the local snapshot
// cancelled with message. The status is refreshed first; cancelling a job
// that already finished is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, jobID, message string) (*models.RosterJob, error) {
	job, err := o.Poll(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		o.logger.Debug("cancel on finished job ignored", "job_id", jobID, "status", job.Status)
		return job, nil
	}
	if err := o.client.Cancel(ctx, jobID); err != nil {
		return nil, err
	}
	if message == "" {
		message = DefaultCancelMessage
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	local := o.jobs[jobID]
	if local.Status.IsTerminal() {
		return local.Clone(), nil
	}
	local.Status = models.JobCancelled
	local.Message = message
	o.logger.Info("roster job cancelled", "job_id", jobID)
	return local.Clone(), nil
}

// Finalize locks a completed job for distribution on behalf of actor.
func (o *Orchestrator) Finalize(ctx context.Context, jobID, actor string) (*models.RosterJob, error) {
	const op = "finalize"
	if actor == "" {
		return nil, apperr.New(apperr.KindValidation, op, "actor is required")
	}
	job, err := o.Poll(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return nil, apperr.Newf(apperr.KindInvalidState, op, "job %s is %s; only completed jobs can be finalized", jobID, job.Status)
	}
	if err := o.client.Finalize(ctx, jobID, actor); err != nil {
		return nil, err
	}
	at := o.now()
	return o.update(jobID, func(j *models.RosterJob) {
		j.Finalized, j.FinalizedBy, j.FinalizedAt = true, actor, &at
	}), nil
}

// Unfinalize clears the finalize flag so the roster can be edited again.
func (o *Orchestrator) Unfinalize(ctx context.Context, jobID string) (*models.RosterJob, error) {
	if _, err := o.current(ctx, jobID); err != nil {
		return nil, err
	}
	if err := o.client.Unfinalize(ctx, jobID); err != nil {
		return nil, err
	}
	return o.update(jobID, func(j *models.RosterJob) {
		j.Finalized, j.FinalizedBy, j.FinalizedAt = false, "", nil
	}), nil
}

func (o *Orchestrator) update(jobID string, fn func(*models.RosterJob)) *models.RosterJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	j := o.jobs[jobID]
	fn(j)
	return j.Clone()
}

// Distribute delivers a finalized roster. Individual delivery failures are
// reported in the result, not as an error; use PartialFailure on the result
// to surface them.
func (o *Orchestrator) Distribute(ctx context.Context, jobID string, opts jobclient.DistributeOptions) (*jobclient.DistributeResult, error) {
	const op = "distribute"
	if err := jobclient.Validate(op, opts); err != nil {
		return nil, err
	}
	job, err := o.current(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Finalized {
		return nil, apperr.Newf(apperr.KindNotFinalized, op, "job %s must be finalized before distribution", jobID)
	}
	res, err := o.client.Distribute(ctx, jobID, opts)
	if err != nil {
		return nil, err
	}
	o.logger.Info("roster distributed", "job_id", jobID,
		"successful", len(res.Successful), "failed", len(res.Failed), "skipped", len(res.Skipped))
	return res, nil
}

// Export streams a rendering of the job to w and returns the bytes written.
func (o *Orchestrator) Export(ctx context.Context, jobID string, req jobclient.ExportRequest, w io.Writer) (int64, error) {
	if err := jobclient.Validate("export", req); err != nil {
		return 0, err
	}
	rc, err := o.client.Export(ctx, jobID, req)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.Copy(w, rc)
	if err != nil {
		return n, apperr.Wrap(apperr.KindNetwork, "export", err)
	}
	return n, nil
}

// MarkModified records slot keys touched by an edit on the local snapshot.
func (o *Orchestrator) MarkModified(jobID string, keys ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		j.MarkModified(keys...)
	}
}
