// Package modification applies post-generation edits to completed rosters
// and keeps the local job snapshot in step with the service afterwards.
package modification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// Tracker is the local job registry kept in sync after every edit.
// *orchestration.Orchestrator satisfies it.
type Tracker interface {
	Poll(ctx context.Context, jobID string) (*models.RosterJob, error)
	MarkModified(jobID string, keys ...string)
}

// Service edits rosters. Callers serialize edits to the same job; the
// service does not queue them.
type Service struct {
	client  jobclient.Client
	tracker Tracker
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service.
func New(client jobclient.Client, tracker Tracker, opts ...Option) *Service {
	s := &Service{client: client, tracker: tracker, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntryFailure explains why one batch entry was not sent.
type EntryFailure struct {
	SlotKey string `json:"slot_key"`
	Reason  string `json:"reason"`
}

// BatchResult reports the outcome of an add or remove batch.
type BatchResult struct {
	Requested int `json:"requested"`
	// Applied is the number of slots the service reports as changed.
	Applied int            `json:"applied"`
	Failed  []EntryFailure `json:"failed,omitempty"`
	// Job is the snapshot re-fetched after the edit.
	Job *models.RosterJob `json:"-"`
}

// Assignment pairs a slot with the doctor to put in it.
type Assignment struct {
	SlotKey string
	Doctor  string
}

// AddShifts assigns doctors to slots.
func (s *Service) AddShifts(ctx context.Context, jobID string, adds []Assignment, reason string) (*BatchResult, error) {
	changes := make([]jobclient.ShiftChange, 0, len(adds))
	for _, a := range adds {
		changes = append(changes, jobclient.ShiftChange{SlotKey: a.SlotKey, Action: jobclient.ActionAdd, Doctor: strings.TrimSpace(a.Doctor)})
	}
	return s.Apply(ctx, jobID, changes, reason)
}

// RemoveShifts vacates slots.
func (s *Service) RemoveShifts(ctx context.Context, jobID string, slotKeys []string, reason string) (*BatchResult, error) {
	changes := make([]jobclient.ShiftChange, 0, len(slotKeys))
	for _, k := range slotKeys {
		changes = append(changes, jobclient.ShiftChange{SlotKey: k, Action: jobclient.ActionRemove})
	}
	return s.Apply(ctx, jobID, changes, reason)
}

// Apply checks each change against the current roster, sends the valid ones
// as a single batch, and re-fetches the job. Entries naming a slot that does
// not exist fail individually without affecting the rest.
func (s *Service) Apply(ctx context.Context, jobID string, changes []jobclient.ShiftChange, reason string) (*BatchResult, error) {
	const op = "modify"
	if len(changes) == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "no changes requested")
	}
	job, err := s.editable(ctx, op, jobID)
	if err != nil {
		return nil, err
	}
	lookup, err := slotLookup(job)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{Requested: len(changes)}
	var valid []jobclient.ShiftChange
	var keys []string
	for _, ch := range changes {
		if why := checkChange(ch, lookup); why != "" {
			res.Failed = append(res.Failed, EntryFailure{SlotKey: ch.SlotKey, Reason: why})
			continue
		}
		date, shift, _ := models.ParseSlotKey(ch.SlotKey)
		ch.SlotKey = models.SlotKey(date, shift)
		valid = append(valid, ch)
		keys = append(keys, ch.SlotKey)
	}
	if len(valid) == 0 {
		res.Job = job
		return res, nil
	}

	n, err := s.client.Modify(ctx, jobID, jobclient.ModifyRequest{Changes: valid, Reason: reason})
	if err != nil {
		return nil, err
	}
	res.Applied = n
	s.tracker.MarkModified(jobID, keys...)
	s.logger.Info("roster modified", "job_id", jobID, "count", n, "requested", res.Requested, "rejected", len(res.Failed))

	res.Job, err = s.tracker.Poll(ctx, jobID)
	if err != nil {
		return res, fmt.Errorf("refreshing job %s after edit: %w", jobID, err)
	}
	return res, nil
}

func checkChange(ch jobclient.ShiftChange, lookup func(date, shift string) (string, bool)) string {
	date, shift, err := models.ParseSlotKey(ch.SlotKey)
	if err != nil {
		return err.Error()
	}
	switch ch.Action {
	case jobclient.ActionAdd:
		if strings.TrimSpace(ch.Doctor) == "" {
			return "a doctor is required to add a shift"
		}
	case jobclient.ActionRemove:
	default:
		return fmt.Sprintf("unknown action %q", ch.Action)
	}
	if _, ok := lookup(date, shift); !ok {
		return "no such slot in this roster"
	}
	return ""
}

// Reassign moves a slot from current to next. The slot must still be held
// by current; otherwise the edit is refused with a KindConflict error and
// nothing is sent.
func (s *Service) Reassign(ctx context.Context, jobID, date, shiftType, current, next string) (*models.RosterJob, error) {
	const op = "reassign"
	req := jobclient.ReassignRequest{
		Date:      strings.TrimSpace(date),
		ShiftType: strings.TrimSpace(shiftType),
		From:      strings.TrimSpace(current),
		To:        strings.TrimSpace(next),
	}
	if err := jobclient.Validate(op, req); err != nil {
		return nil, err
	}
	job, err := s.editable(ctx, op, jobID)
	if err != nil {
		return nil, err
	}
	lookup, err := slotLookup(job)
	if err != nil {
		return nil, err
	}
	occupant, ok := lookup(req.Date, req.ShiftType)
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, op, "no slot %s in job %s", req.SlotKey(), jobID)
	}
	if occupant != req.From {
		held := occupant
		if held == "" {
			held = models.VacantDoctor
		}
		return nil, apperr.Newf(apperr.KindConflict, op, "slot %s is now held by %s, not %s", req.SlotKey(), held, req.From)
	}

	if err := s.client.Reassign(ctx, jobID, req); err != nil {
		return nil, err
	}
	s.tracker.MarkModified(jobID, req.SlotKey())
	s.logger.Info("shift reassigned", "job_id", jobID, "slot", req.SlotKey(), "from", req.From, "to", req.To)

	job, err = s.tracker.Poll(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("refreshing job %s after reassignment: %w", jobID, err)
	}
	return job, nil
}

// editable fetches a fresh snapshot and checks the job can still be edited.
func (s *Service) editable(ctx context.Context, op, jobID string) (*models.RosterJob, error) {
	job, err := s.tracker.Poll(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return nil, apperr.Newf(apperr.KindInvalidState, op, "job %s is %s; only completed rosters can be edited", jobID, job.Status)
	}
	if job.Finalized {
		return nil, apperr.Newf(apperr.KindInvalidState, op, "job %s is finalized; unfinalize it before editing", jobID)
	}
	return job, nil
}

// slotLookup indexes the job's roster. Structured roster data is exact and
// preferred; the calendar document is used when only outputs are present.
func slotLookup(job *models.RosterJob) (func(date, shift string) (string, bool), error) {
	if len(job.RosterData) > 0 {
		return func(date, shift string) (string, bool) {
			occupant, ok := job.RosterData[date][shift]
			if !ok {
				return "", false
			}
			if dataset.IsVacant(occupant) {
				return "", true
			}
			return strings.TrimSpace(occupant), true
		}, nil
	}
	if job.Outputs != nil && job.Outputs.CalendarView != "" {
		return dataset.ParseCalendar(job.Outputs.CalendarView).Lookup, nil
	}
	return nil, apperr.Newf(apperr.KindInvalidState, "modify", "job %s carries no roster to edit", job.ID)
}
