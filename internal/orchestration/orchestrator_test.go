package orchestration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestOrchestrator(client jobclient.Client, opts ...Option) *Orchestrator {
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	return New(client, opts...)
}

func snapshot(status models.JobStatus, progress int) *models.RosterJob {
	return &models.RosterJob{ID: "job-1", Status: status, Progress: progress}
}

func TestWatch_ProgressCallbacksAndNoPollsAfterTerminal(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)

	gomock.InOrder(
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobPending, 0), nil),
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 40), nil),
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 70), nil),
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil),
	)

	o := newTestOrchestrator(client)
	var seen []int
	job, err := o.Watch(context.Background(), "job-1", func(j *models.RosterJob) {
		seen = append(seen, j.Progress)
	})
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Equal(t, []int{0, 40, 70}, seen)

	local, ok := o.Snapshot("job-1")
	require.True(t, ok)
	require.Equal(t, models.JobCompleted, local.Status)
}

func TestWatch_FailedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)

	gomock.InOrder(
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 10), nil),
		client.EXPECT().Status(gomock.Any(), "job-1").Return(&models.RosterJob{
			ID: "job-1", Status: models.JobFailed, Error: "model infeasible",
		}, nil),
	)

	job, err := newTestOrchestrator(client).Watch(context.Background(), "job-1", nil)
	require.ErrorIs(t, err, apperr.ErrJobFailed)
	require.Contains(t, err.Error(), "model infeasible")
	require.NotNil(t, job)
	require.Equal(t, models.JobFailed, job.Status)
}

func TestWatch_CancelledJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(&models.RosterJob{
		ID: "job-1", Status: models.JobCancelled, Message: "stopped by admin",
	}, nil)

	_, err := newTestOrchestrator(client).Watch(context.Background(), "job-1", nil)
	require.ErrorIs(t, err, apperr.ErrJobCancelled)
	require.Contains(t, err.Error(), "stopped by admin")
}

func TestWatch_TimesOutAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 50), nil).Times(3)

	calls := 0
	_, err := newTestOrchestrator(client, WithMaxAttempts(3)).Watch(context.Background(), "job-1", func(*models.RosterJob) {
		calls++
	})
	require.ErrorIs(t, err, apperr.ErrTimeout)
	require.Equal(t, 3, calls)
}

func TestWatch_TransientErrorsConsumeAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Status(gomock.Any(), "job-1").Return(nil, apperr.New(apperr.KindNetwork, "status", "connection reset")),
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil),
	)

	job, err := newTestOrchestrator(client).Watch(context.Background(), "job-1", nil)
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)
}

func TestWatch_TimeoutKeepsLastTransientError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	netErr := apperr.New(apperr.KindNetwork, "status", "connection reset")
	client.EXPECT().Status(gomock.Any(), "job-1").Return(nil, netErr).Times(2)

	_, err := newTestOrchestrator(client, WithMaxAttempts(2)).Watch(context.Background(), "job-1", nil)
	require.ErrorIs(t, err, apperr.ErrTimeout)
	require.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestWatch_NonTransientErrorStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(nil, apperr.New(apperr.KindNotFound, "status", "no such job"))

	_, err := newTestOrchestrator(client).Watch(context.Background(), "job-1", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWatch_ContextCancelStopsScheduling(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 10), nil).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	o := newTestOrchestrator(client, WithPollInterval(time.Hour))
	_, err := o.Watch(ctx, "job-1", func(*models.RosterJob) { cancel() })
	require.ErrorIs(t, err, context.Canceled)
}

func TestWatch_InFlightPollSurvivesCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	client.EXPECT().Status(gomock.Any(), "job-1").DoAndReturn(func(pollCtx context.Context, _ string) (*models.RosterJob, error) {
		cancel()
		require.NoError(t, pollCtx.Err())
		return snapshot(models.JobRunning, 20), nil
	})

	var seen []int
	_, err := newTestOrchestrator(client).Watch(ctx, "job-1", func(j *models.RosterJob) {
		seen = append(seen, j.Progress)
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []int{20}, seen)
}

func TestWatch_AlreadyCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOrchestrator(client).Watch(ctx, "job-1", nil)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestSubmit_ValidatesBeforeCallingService(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)

	_, err := o.Submit(context.Background(), jobclient.SubmitRequest{StartDate: "2025-01-06", Weeks: 0})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = o.Submit(context.Background(), jobclient.SubmitRequest{StartDate: "next monday", Weeks: 2})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSubmit_TracksPendingJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	req := jobclient.SubmitRequest{StartDate: "2025-01-06", Weeks: 2, Sites: []string{"Frankston"}}
	client.EXPECT().Submit(gomock.Any(), req).Return("job-9", nil)

	fixed := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(client, WithClock(func() time.Time { return fixed }))
	id, err := o.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "job-9", id)

	job, ok := o.Snapshot("job-9")
	require.True(t, ok)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, fixed, job.CreatedAt)
	assert.Equal(t, "2025-01-19", job.Params.EndDate)
}

func TestDistribute_NotFinalizedSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	client.EXPECT().Distribute(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := newTestOrchestrator(client).Distribute(context.Background(), "job-1", jobclient.DistributeOptions{})
	require.ErrorIs(t, err, apperr.ErrNotFinalized)
}

func TestDistribute_PartialFailureIsNotAnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)
	o.Track(&models.RosterJob{ID: "job-1", Status: models.JobCompleted, Finalized: true})

	want := &jobclient.DistributeResult{
		Successful: []jobclient.Recipient{{Doctor: "Dr A", Email: "a@example.org"}},
		Failed:     []jobclient.Recipient{{Doctor: "Dr B", Reason: "bounced"}},
		Skipped:    []jobclient.Recipient{{Doctor: "Dr C", Reason: "no email"}},
	}
	client.EXPECT().Distribute(gomock.Any(), "job-1", jobclient.DistributeOptions{}).Return(want, nil)

	res, err := o.Distribute(context.Background(), "job-1", jobclient.DistributeOptions{})
	require.NoError(t, err)
	require.Equal(t, want, res)
	require.ErrorIs(t, res.PartialFailure(), apperr.ErrPartialFailure)
}

func TestCancel_TerminalJobIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)

	o := newTestOrchestrator(client)
	job, err := o.Cancel(context.Background(), "job-1", "")
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)

	// The second cancel re-reads the status and still sends no cancel request.
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	job, err = o.Cancel(context.Background(), "job-1", "")
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)
}

func TestCancel_RunningJobStaysCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)
	o.Track(snapshot(models.JobRunning, 30))

	gomock.InOrder(
		client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 40), nil),
		client.EXPECT().Cancel(gomock.Any(), "job-1").Return(nil),
	)
	job, err := o.Cancel(context.Background(), "job-1", "wrong dates")
	require.NoError(t, err)
	require.Equal(t, models.JobCancelled, job.Status)
	require.Equal(t, "wrong dates", job.Message)

	// A late report from the service does not resurrect the job.
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	job, err = o.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobCancelled, job.Status)
}

func TestCancel_JobCompletedSinceLastPoll(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)

	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 90), nil)
	job, err := o.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobRunning, job.Status)

	// The service finished the job before the cancel arrived.
	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	client.EXPECT().Cancel(gomock.Any(), gomock.Any()).Times(0)
	job, err = o.Cancel(context.Background(), "job-1", "")
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)

	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	job, err = o.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
}

func TestFinalize(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)

	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobRunning, 80), nil)
	_, err := o.Finalize(context.Background(), "job-1", "coordinator")
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	client.EXPECT().Status(gomock.Any(), "job-1").Return(snapshot(models.JobCompleted, 100), nil)
	client.EXPECT().Finalize(gomock.Any(), "job-1", "coordinator").Return(nil)
	job, err := o.Finalize(context.Background(), "job-1", "coordinator")
	require.NoError(t, err)
	require.True(t, job.Finalized)
	require.Equal(t, "coordinator", job.FinalizedBy)
	require.NotNil(t, job.FinalizedAt)

	client.EXPECT().Unfinalize(gomock.Any(), "job-1").Return(nil)
	job, err = o.Unfinalize(context.Background(), "job-1")
	require.NoError(t, err)
	require.False(t, job.Finalized)
	require.Nil(t, job.FinalizedAt)

	_, err = o.Finalize(context.Background(), "job-1", "")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPoll_ModifiedShiftsOnlyGrow(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	o := newTestOrchestrator(client)
	o.Track(&models.RosterJob{ID: "job-1", Status: models.JobCompleted, ModifiedShifts: []string{"a"}})

	client.EXPECT().Status(gomock.Any(), "job-1").Return(&models.RosterJob{
		ID: "job-1", Status: models.JobCompleted, ModifiedShifts: []string{"b"},
	}, nil)
	job, err := o.Poll(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, job.ModifiedShifts)
}

func TestExport(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := jobclient.NewMockClient(ctrl)
	req := jobclient.ExportRequest{Format: jobclient.FormatCSV, Scope: jobclient.ScopeAll}
	client.EXPECT().Export(gomock.Any(), "job-1", req).Return(io.NopCloser(strings.NewReader("Date,Blue\n")), nil)

	var buf bytes.Buffer
	n, err := newTestOrchestrator(client).Export(context.Background(), "job-1", req, &buf)
	require.NoError(t, err)
	require.EqualValues(t, 10, n)
	require.Equal(t, "Date,Blue\n", buf.String())
}

func TestCheckOverlap(t *testing.T) {
	fake := jobclient.NewFake()
	ctx := context.Background()
	_, err := fake.Submit(ctx, jobclient.SubmitRequest{StartDate: "2025-01-06", Weeks: 2})
	require.NoError(t, err)
	cancelled, err := fake.Submit(ctx, jobclient.SubmitRequest{StartDate: "2025-01-13", Weeks: 1})
	require.NoError(t, err)
	require.NoError(t, fake.Cancel(ctx, cancelled))

	o := newTestOrchestrator(fake)
	overlaps, err := o.CheckOverlap(ctx, jobclient.SubmitRequest{StartDate: "2025-01-13", Weeks: 4})
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	require.Equal(t, "job-0001", overlaps[0].ID)

	overlaps, err = o.CheckOverlap(ctx, jobclient.SubmitRequest{StartDate: "2025-03-03", Weeks: 1})
	require.NoError(t, err)
	require.Empty(t, overlaps)
}

func TestWatchWithFake(t *testing.T) {
	fake := jobclient.NewFake()
	o := newTestOrchestrator(fake)
	ctx := context.Background()

	id, err := o.Submit(ctx, jobclient.SubmitRequest{StartDate: "2025-01-06", Weeks: 1})
	require.NoError(t, err)

	callbacks := 0
	job, err := o.Watch(ctx, id, func(*models.RosterJob) { callbacks++ })
	require.NoError(t, err)
	require.Equal(t, 3, callbacks)
	require.Equal(t, 4, fake.Calls("Status"))
	require.False(t, job.Outputs.IsEmpty())
	require.Equal(t, "2025-01-12", job.Params.EndDate)
}
