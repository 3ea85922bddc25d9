package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/sony/gobreaker"
)

// DefaultTimeout bounds every single HTTP call.
const DefaultTimeout = 30 * time.Second

const apiPrefix = "/api/roster"

// HTTPClient talks to the optimizer service over its REST API.
type HTTPClient struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client for the service rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperr.Newf(apperr.KindValidation, "jobclient", "invalid server URL %q", baseURL)
	}
	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "roster-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transport problems count against the breaker; a 404 or 409 is
		// a healthy service answering.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	JobID          string                `json:"job_id"`
	Status         models.JobStatus      `json:"status"`
	Progress       int                   `json:"progress"`
	Message        string                `json:"message"`
	CreatedAt      time.Time             `json:"created_at"`
	CompletedAt    *time.Time            `json:"completed_at"`
	Error          string                `json:"error"`
	RosterData     map[string]any        `json:"roster_data"`
	Outputs        *models.RosterOutputs `json:"outputs"`
	ModifiedShifts []string              `json:"modified_shifts"`
	Finalized      bool                  `json:"finalized"`
	FinalizedBy    string                `json:"finalized_by"`
	FinalizedAt    *time.Time            `json:"finalized_at"`
}

type modifyResponse struct {
	UpdatedCount int `json:"updated_count"`
}

type listResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	const op = "submit"
	if err := Validate(op, req); err != nil {
		return "", err
	}
	var resp submitResponse
	if err := c.doJSON(ctx, op, http.MethodPost, apiPrefix+"/generate", nil, req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", apperr.New(apperr.KindNetwork, op, "response carried no job_id")
	}
	return resp.JobID, nil
}

func (c *HTTPClient) Status(ctx context.Context, jobID string) (*models.RosterJob, error) {
	const op = "status"
	var resp statusResponse
	if err := c.doJSON(ctx, op, http.MethodGet, jobPath(jobID, ""), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toJob(jobID)
}

func (c *HTTPClient) Cancel(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, "cancel", http.MethodPost, jobPath(jobID, "cancel"), nil, nil, nil)
}

func (c *HTTPClient) Finalize(ctx context.Context, jobID, actor string) error {
	body := map[string]string{"finalized_by": actor}
	return c.doJSON(ctx, "finalize", http.MethodPost, jobPath(jobID, "finalize"), nil, body, nil)
}

func (c *HTTPClient) Unfinalize(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, "unfinalize", http.MethodPost, jobPath(jobID, "unfinalize"), nil, nil, nil)
}

func (c *HTTPClient) Modify(ctx context.Context, jobID string, req ModifyRequest) (int, error) {
	const op = "modify"
	if err := Validate(op, req); err != nil {
		return 0, err
	}
	var resp modifyResponse
	if err := c.doJSON(ctx, op, http.MethodPost, jobPath(jobID, "modify"), nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.UpdatedCount, nil
}

func (c *HTTPClient) Reassign(ctx context.Context, jobID string, req ReassignRequest) error {
	const op = "reassign"
	if err := Validate(op, req); err != nil {
		return err
	}
	return c.doJSON(ctx, op, http.MethodPost, jobPath(jobID, "reassign"), nil, req, nil)
}

func (c *HTTPClient) Distribute(ctx context.Context, jobID string, opts DistributeOptions) (*DistributeResult, error) {
	const op = "distribute"
	if err := Validate(op, opts); err != nil {
		return nil, err
	}
	var resp DistributeResult
	if err := c.doJSON(ctx, op, http.MethodPost, jobPath(jobID, "distribute"), nil, opts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export streams the rendered roster. The caller closes the reader.
func (c *HTTPClient) Export(ctx context.Context, jobID string, req ExportRequest) (io.ReadCloser, error) {
	const op = "export"
	if err := Validate(op, req); err != nil {
		return nil, err
	}
	q := url.Values{"format": {string(req.Format)}, "scope": {string(req.Scope)}}
	resp, err := c.send(ctx, op, http.MethodGet, jobPath(jobID, "export"), q, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) ListJobs(ctx context.Context, from, to string) ([]JobSummary, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	var resp listResponse
	if err := c.doJSON(ctx, "list", http.MethodGet, apiPrefix+"/jobs", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func jobPath(jobID, action string) string {
	p := apiPrefix + "/jobs/" + url.PathEscape(jobID)
	if action != "" {
		p += "/" + action
	}
	return p
}

// doJSON sends body as JSON and decodes the response into out when out is
// non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, q url.Values, body, out any) error {
	resp, err := c.send(ctx, op, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindNetwork, op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// send performs one request through the circuit breaker. On success the
// caller owns resp.Body.
func (c *HTTPClient) send(ctx context.Context, op, method, path string, q url.Values, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = q.Encode()

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, op, err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, transportError(op, err)
		}
		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, statusError(op, resp)
		}
		return resp, nil
	})
	c.logger.Debug("roster service call", "op", op, "method", method, "path", path, "duration", time.Since(start), "error", err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.Wrap(apperr.KindNetwork, op, err)
		}
		return nil, err
	}
	return result.(*http.Response), nil
}

func transportError(op string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return apperr.Wrap(apperr.KindTimeout, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindTimeout, op, err)
	}
	return apperr.Wrap(apperr.KindNetwork, op, err)
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil {
		switch {
		case er.Error != "" && er.Detail != "":
			msg = er.Error + ": " + er.Detail
		case er.Error != "":
			msg = er.Error
		case er.Detail != "":
			msg = er.Detail
		}
	}
	if msg == "" {
		msg = resp.Status
	}

	kind := apperr.KindNetwork
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = apperr.KindNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = apperr.KindConflict
	case resp.StatusCode == http.StatusPreconditionFailed:
		kind = apperr.KindNotFinalized
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		kind = apperr.KindValidation
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusGatewayTimeout:
		kind = apperr.KindTimeout
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = apperr.KindValidation
		msg = "not authorized: " + msg
	}
	return apperr.New(kind, op, msg)
}

// toJob converts the wire snapshot. roster_data arrives loosely typed
// (null cells, numbers for some legacy doctor ids) and is decoded leniently.
func (r *statusResponse) toJob(requestedID string) (*models.RosterJob, error) {
	if !r.Status.Valid() {
		return nil, apperr.Newf(apperr.KindNetwork, "status", "unknown job status %q", r.Status)
	}
	job := &models.RosterJob{
		ID:             r.JobID,
		Status:         r.Status,
		Progress:       r.Progress,
		Message:        r.Message,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
		Error:          r.Error,
		Outputs:        r.Outputs,
		ModifiedShifts: r.ModifiedShifts,
		Finalized:      r.Finalized,
		FinalizedBy:    r.FinalizedBy,
		FinalizedAt:    r.FinalizedAt,
	}
	if job.ID == "" {
		job.ID = requestedID
	}
	if len(r.RosterData) > 0 {
		data, err := decodeRosterData(r.RosterData)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindNetwork, "status", err)
		}
		job.RosterData = data
	}
	return job, nil
}

func decodeRosterData(raw map[string]any) (models.RosterData, error) {
	var data models.RosterData
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &data,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding roster_data: %w", err)
	}
	return data, nil
}
