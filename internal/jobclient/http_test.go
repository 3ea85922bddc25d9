package jobclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(srv.URL, WithToken("secret"), WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func TestHTTPClient_Submit(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/roster/generate", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "2025-02-03", req.StartDate)
		require.Equal(t, 4, req.Weeks)

		_ = json.NewEncoder(w).Encode(map[string]string{"job_id": "abc"})
	})

	id, err := c.Submit(context.Background(), SubmitRequest{StartDate: "2025-02-03", Weeks: 4})
	require.NoError(t, err)
	require.Equal(t, "abc", id)
}

func TestHTTPClient_SubmitValidatesLocally(t *testing.T) {
	called := false
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Submit(context.Background(), SubmitRequest{StartDate: "2025-02-03", Weeks: 0})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.Submit(context.Background(), SubmitRequest{StartDate: "03/02/2025", Weeks: 2})
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.False(t, called)
}

func TestHTTPClient_StatusDecodesRosterData(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/roster/jobs/j-1", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"job_id": "j-1",
			"status": "completed",
			"progress": 100,
			"message": "done",
			"roster_data": {
				"2025-01-01": {"Frankston Blue AM": "Dr A", "Rosebud Red PM": null, "Frankston Red AM": 1042}
			},
			"outputs": {"calendar_view": "Date,Blue\n2025-01-01,Dr A\n"},
			"modified_shifts": ["2025-01-01|Frankston Blue AM"],
			"finalized": true,
			"finalized_by": "admin"
		}`)
	})

	job, err := c.Status(context.Background(), "j-1")
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, job.Status)
	require.Equal(t, 100, job.Progress)
	require.Equal(t, "Dr A", job.RosterData["2025-01-01"]["Frankston Blue AM"])
	require.Equal(t, "", job.RosterData["2025-01-01"]["Rosebud Red PM"])
	require.Equal(t, "1042", job.RosterData["2025-01-01"]["Frankston Red AM"])
	require.Equal(t, "Date,Blue\n2025-01-01,Dr A\n", job.Outputs.CalendarView)
	require.Equal(t, []string{"2025-01-01|Frankston Blue AM"}, job.ModifiedShifts)
	require.True(t, job.Finalized)
	require.Equal(t, "admin", job.FinalizedBy)
}

func TestHTTPClient_StatusRejectsUnknownStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"job_id":"j-1","status":"exploded"}`)
	})
	_, err := c.Status(context.Background(), "j-1")
	require.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusConflict, apperr.ErrConflict},
		{http.StatusPreconditionFailed, apperr.ErrNotFinalized},
		{http.StatusUnprocessableEntity, apperr.ErrValidation},
		{http.StatusGatewayTimeout, apperr.ErrTimeout},
		{http.StatusInternalServerError, apperr.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, `{"error":"nope","detail":"because"}`)
			})
			err := c.Cancel(context.Background(), "j-1")
			require.ErrorIs(t, err, tt.want)
			require.Contains(t, err.Error(), "nope: because")
		})
	}
}

func TestHTTPClient_BreakerOpensOnServerErrors(t *testing.T) {
	hits := 0
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	})
	for range 5 {
		require.ErrorIs(t, c.Cancel(context.Background(), "j-1"), apperr.ErrNetwork)
	}
	err := c.Cancel(context.Background(), "j-1")
	require.ErrorIs(t, err, apperr.ErrNetwork)
	require.Contains(t, err.Error(), "circuit breaker is open")
	require.Equal(t, 5, hits)
}

func TestHTTPClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	hits := 0
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	})
	for range 8 {
		require.ErrorIs(t, c.Cancel(context.Background(), "missing"), apperr.ErrNotFound)
	}
	require.Equal(t, 8, hits)
}

func TestHTTPClient_ModifyAndReassign(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/roster/jobs/j-1/modify":
			var req ModifyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Changes, 2)
			require.Equal(t, "short staffed", req.Reason)
			_, _ = io.WriteString(w, `{"updated_count": 1}`)
		case "/api/roster/jobs/j-1/reassign":
			var req ReassignRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "Dr A", req.From)
			require.Equal(t, "Dr B", req.To)
			_, _ = io.WriteString(w, `{"ok": true}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	n, err := c.Modify(context.Background(), "j-1", ModifyRequest{
		Changes: []ShiftChange{
			{SlotKey: "2025-01-01|Frankston Blue AM", Action: ActionRemove},
			{SlotKey: "2025-01-02|Frankston Blue AM", Action: ActionAdd, Doctor: "Dr C"},
		},
		Reason: "short staffed",
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	err = c.Reassign(context.Background(), "j-1", ReassignRequest{
		Date: "2025-01-01", ShiftType: "Frankston Blue AM", From: "Dr A", To: "Dr B",
	})
	require.NoError(t, err)
}

func TestHTTPClient_DistributeAndList(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/roster/jobs/j-1/distribute":
			_, _ = io.WriteString(w, `{
				"successful": [{"doctor": "Dr A", "email": "a@example.org"}],
				"failed": [{"doctor": "Dr B", "email": "b@example.org", "reason": "mailbox full"}],
				"skipped": [{"doctor": "Dr C", "reason": "no email"}]
			}`)
		case "/api/roster/jobs":
			require.Equal(t, "2025-01-01", r.URL.Query().Get("from"))
			require.Equal(t, "2025-01-28", r.URL.Query().Get("to"))
			_, _ = io.WriteString(w, `{"jobs": [{"job_id": "j-0", "status": "completed", "start_date": "2025-01-15", "end_date": "2025-02-11"}]}`)
		}
	})

	res, err := c.Distribute(context.Background(), "j-1", DistributeOptions{})
	require.NoError(t, err)
	require.Len(t, res.Successful, 1)
	require.Len(t, res.Failed, 1)
	require.Len(t, res.Skipped, 1)
	require.ErrorIs(t, res.PartialFailure(), apperr.ErrPartialFailure)

	jobs, err := c.ListJobs(context.Background(), "2025-01-01", "2025-01-28")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].Overlaps("2025-01-01", "2025-01-28"))
}

func TestHTTPClient_Export(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/roster/jobs/j-1/export", r.URL.Path)
		require.Equal(t, "csv", r.URL.Query().Get("format"))
		require.Equal(t, "management", r.URL.Query().Get("scope"))
		_, _ = io.WriteString(w, "Doctor_Name,EFT\nDr A,1.0\n")
	})

	rc, err := c.Export(context.Background(), "j-1", ExportRequest{Format: FormatCSV, Scope: ScopeManagement})
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "Doctor_Name,EFT\nDr A,1.0\n", string(body))

	_, err = c.Export(context.Background(), "j-1", ExportRequest{Format: "docx", Scope: ScopeAll})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(url)
	require.NoError(t, err)
	_, err = c.Status(context.Background(), "j-1")
	require.True(t, apperr.Retryable(err))
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	_, err := NewHTTPClient("not a url")
	require.ErrorIs(t, err, apperr.ErrValidation)
}
