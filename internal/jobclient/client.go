// Package jobclient is the consumed job-control contract of the roster
// optimizer service, with an HTTP implementation and an in-memory fake.
package jobclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/models"
)

//go:generate go tool mockgen -destination=mock_client.go -package=jobclient . Client

// Client is the job-control contract. Every call is a single request with no
// retries; callers own any polling loop.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, jobID string) (*models.RosterJob, error)
	Cancel(ctx context.Context, jobID string) error
	Finalize(ctx context.Context, jobID, actor string) error
	Unfinalize(ctx context.Context, jobID string) error
	Modify(ctx context.Context, jobID string, req ModifyRequest) (int, error)
	Reassign(ctx context.Context, jobID string, req ReassignRequest) error
	Distribute(ctx context.Context, jobID string, opts DistributeOptions) (*DistributeResult, error)
	Export(ctx context.Context, jobID string, req ExportRequest) (io.ReadCloser, error)
	ListJobs(ctx context.Context, from, to string) ([]JobSummary, error)
}

// SubmitRequest asks the optimizer for a roster starting at StartDate.
type SubmitRequest struct {
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Weeks     int      `json:"weeks" validate:"gt=0"`
	Sites     []string `json:"sites,omitempty" validate:"dive,required"`
}

// EndDate returns the last date covered by the request, or "" if StartDate
// does not parse.
func (r SubmitRequest) EndDate() string {
	start, err := time.Parse(time.DateOnly, r.StartDate)
	if err != nil || r.Weeks <= 0 {
		return ""
	}
	return start.AddDate(0, 0, r.Weeks*7-1).Format(time.DateOnly)
}

// ShiftAction is the kind of change applied to one slot.
type ShiftAction string

const (
	// ActionAdd assigns a doctor to the slot.
	ActionAdd ShiftAction = "add"
	// ActionRemove vacates the slot.
	ActionRemove ShiftAction = "remove"
)

// ShiftChange is one entry of a modification batch.
type ShiftChange struct {
	SlotKey string      `json:"slot_key" validate:"required"`
	Action  ShiftAction `json:"action" validate:"oneof=add remove"`
	Doctor  string      `json:"doctor,omitempty" validate:"required_if=Action add"`
}

// ModifyRequest is a batch of slot changes with an audit reason.
type ModifyRequest struct {
	Changes []ShiftChange `json:"changes" validate:"required,min=1,dive"`
	Reason  string        `json:"reason,omitempty"`
}

// ReassignRequest moves a single slot from one doctor to another.
type ReassignRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	ShiftType string `json:"shift_type" validate:"required"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required,nefield=From"`
}

// SlotKey returns the slot key of the reassigned slot.
func (r ReassignRequest) SlotKey() string {
	return models.SlotKey(r.Date, r.ShiftType)
}

// DistributeOptions control roster delivery. In test mode everything is sent
// to TestEmail instead of the doctors.
type DistributeOptions struct {
	TestMode  bool   `json:"test_mode,omitempty"`
	TestEmail string `json:"test_email,omitempty" validate:"omitempty,email"`
}

func validateDistributeOptions(sl validator.StructLevel) {
	o := sl.Current().Interface().(DistributeOptions)
	if o.TestMode && o.TestEmail == "" {
		sl.ReportError(o.TestEmail, "TestEmail", "TestEmail", "required_if", "TestMode true")
	}
}

// Recipient is one distribution outcome. Reason is empty for successes.
type Recipient struct {
	Doctor string `json:"doctor"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DistributeResult partitions recipients by outcome.
type DistributeResult struct {
	Successful []Recipient `json:"successful"`
	Failed     []Recipient `json:"failed"`
	Skipped    []Recipient `json:"skipped"`
}

// Total is the number of recipients considered.
func (r *DistributeResult) Total() int {
	return len(r.Successful) + len(r.Failed) + len(r.Skipped)
}

// PartialFailure returns a KindPartialFailure error when any delivery failed,
// nil otherwise. Distribution itself never fails for this reason.
func (r *DistributeResult) PartialFailure() error {
	if len(r.Failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		names = append(names, f.Doctor)
	}
	return apperr.Newf(apperr.KindPartialFailure, "distribute",
		"%d of %d deliveries failed: %s", len(r.Failed), r.Total(), strings.Join(names, ", "))
}

// ExportFormat is the file type of an exported roster.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportScope selects which audience the export is prepared for.
type ExportScope string

const (
	ScopeAll          ExportScope = "all"
	ScopeDistribution ExportScope = "distribution"
	ScopeManagement   ExportScope = "management"
)

// ExportRequest selects an export rendering.
type ExportRequest struct {
	Format ExportFormat `json:"format" validate:"oneof=csv pdf"`
	Scope  ExportScope  `json:"scope" validate:"oneof=all distribution management"`
}

// JobSummary is a listing entry used for overlap detection.
type JobSummary struct {
	ID        string           `json:"job_id"`
	Status    models.JobStatus `json:"status"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	CreatedAt time.Time        `json:"created_at"`
}

// Overlaps reports whether the job's date range intersects [from, to].
// Dates compare lexically in YYYY-MM-DD form.
func (s JobSummary) Overlaps(from, to string) bool {
	end := s.EndDate
	if end == "" {
		end = s.StartDate
	}
	return s.StartDate <= to && from <= end
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateDistributeOptions, DistributeOptions{})
	return v
}

// Validate checks a request struct and reports the first failures as a
// KindValidation error.
func Validate(op string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return apperr.New(apperr.KindValidation, op, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s form", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "email":
		return field + " must be an email address"
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %q", field, fe.Tag())
}
