package jobclient

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/metrics"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// Step is one scripted status report of a fake job.
type Step struct {
	Status   models.JobStatus
	Progress int
	Message  string
}

// DefaultScript is the status sequence a fake job reports, one step per
// Status call.
var DefaultScript = []Step{
	{Status: models.JobPending, Progress: 0, Message: "Queued"},
	{Status: models.JobRunning, Progress: 40, Message: "Building model"},
	{Status: models.JobRunning, Progress: 70, Message: "Solving"},
	{Status: models.JobCompleted, Progress: 100, Message: "Roster generated"},
}

// DefaultDoctors is the rotation used to fill generated rosters.
var DefaultDoctors = []string{"Dr Adams", "Dr Baker", "Dr Chen", "Dr Dunn", "Dr Evans", "Dr Fox"}

// Fake is a stateful in-memory Client. It renders real calendar, doctor and
// summary documents so callers exercise the same parsing paths as against
// the live service.
type Fake struct {
	// Script is copied into each submitted job. Defaults to DefaultScript.
	Script []Step
	// Doctors is the assignment rotation. Defaults to DefaultDoctors.
	Doctors []string
	// Contacts maps doctor to email. Doctors without one are skipped on distribution.
	Contacts map[string]string
	// Undeliverable maps doctor to a failure reason for distribution.
	Undeliverable map[string]string
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	mu     sync.Mutex
	jobs   map[string]*fakeJob
	nextID int
	calls  map[string]int
}

type fakeJob struct {
	job    *models.RosterJob
	script []Step
	step   int
	start  string
	end    string
}

var _ Client = (*Fake)(nil)

// NewFake creates an empty Fake with default settings.
func NewFake() *Fake {
	return &Fake{
		jobs:  map[string]*fakeJob{},
		calls: map[string]int{},
	}
}

// Calls reports how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Job returns a copy of the server-side state of a job, or nil.
func (f *Fake) Job(jobID string) *models.RosterJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fj, ok := f.jobs[jobID]; ok {
		return fj.job.Clone()
	}
	return nil
}

// AddJob seeds a job as-is. A completed job with roster data gets its
// outputs rendered.
func (f *Fake) AddJob(job *models.RosterJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := job.Clone()
	fj := &fakeJob{job: j, script: []Step{{Status: j.Status, Progress: j.Progress, Message: j.Message}}}
	if dates := j.RosterData.Dates(); len(dates) > 0 {
		fj.start, fj.end = dates[0], dates[len(dates)-1]
	} else if j.Params != nil {
		fj.start, fj.end = j.Params.StartDate, j.Params.EndDate
	}
	if j.Status == models.JobCompleted && len(j.RosterData) > 0 && j.Outputs == nil {
		f.render(j)
	}
	f.jobsMap()[j.ID] = fj
}

// SetSlot changes a slot behind the client's back, as another session would.
func (f *Fake) SetSlot(jobID, date, shiftType, doctor string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fj, ok := f.jobsMap()[jobID]
	if !ok || fj.job.RosterData[date] == nil {
		return
	}
	fj.job.RosterData[date][shiftType] = doctor
	f.render(fj.job)
}

func (f *Fake) Submit(_ context.Context, req SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Submit")
	if err := Validate("submit", req); err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("job-%04d", f.nextID)
	script := f.Script
	if len(script) == 0 {
		script = DefaultScript
	}
	fj := &fakeJob{
		job: &models.RosterJob{
			ID:        id,
			Status:    script[0].Status,
			Message:   script[0].Message,
			CreatedAt: f.now(),
			Params: &models.GenerationParams{
				StartDate: req.StartDate,
				EndDate:   req.EndDate(),
				Weeks:     req.Weeks,
				Sites:     slices.Clone(req.Sites),
			},
		},
		script: slices.Clone(script),
		start:  req.StartDate,
		end:    req.EndDate(),
	}
	f.jobsMap()[id] = fj
	return id, nil
}

// Status reports the job's current step and then advances it.
func (f *Fake) Status(_ context.Context, jobID string) (*models.RosterJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Status")
	fj, err := f.lookup("status", jobID)
	if err != nil {
		return nil, err
	}
	j := fj.job
	if !j.Status.IsTerminal() && fj.step < len(fj.script) {
		s := fj.script[fj.step]
		j.Status, j.Progress, j.Message = s.Status, s.Progress, s.Message
		switch s.Status {
		case models.JobCompleted:
			t := f.now()
			j.CompletedAt = &t
			if len(j.RosterData) == 0 {
				j.RosterData = f.generate(j.Params)
			}
			f.render(j)
		case models.JobFailed:
			j.Error = s.Message
		}
		fj.step++
	}
	return j.Clone(), nil
}

func (f *Fake) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Cancel")
	fj, err := f.lookup("cancel", jobID)
	if err != nil {
		return err
	}
	if !fj.job.Status.IsTerminal() {
		fj.job.Status = models.JobCancelled
		fj.job.Message = "Cancelled by user"
	}
	return nil
}

func (f *Fake) Finalize(_ context.Context, jobID, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Finalize")
	fj, err := f.lookup("finalize", jobID)
	if err != nil {
		return err
	}
	if fj.job.Status != models.JobCompleted {
		return apperr.Newf(apperr.KindInvalidState, "finalize", "job %s is %s", jobID, fj.job.Status)
	}
	t := f.now()
	fj.job.Finalized, fj.job.FinalizedBy, fj.job.FinalizedAt = true, actor, &t
	return nil
}

func (f *Fake) Unfinalize(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Unfinalize")
	fj, err := f.lookup("unfinalize", jobID)
	if err != nil {
		return err
	}
	fj.job.Finalized, fj.job.FinalizedBy, fj.job.FinalizedAt = false, "", nil
	return nil
}

// Modify applies every change whose slot exists and reports how many slots
// actually changed value.
func (f *Fake) Modify(_ context.Context, jobID string, req ModifyRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Modify")
	if err := Validate("modify", req); err != nil {
		return 0, err
	}
	fj, err := f.lookup("modify", jobID)
	if err != nil {
		return 0, err
	}
	if fj.job.Status != models.JobCompleted {
		return 0, apperr.Newf(apperr.KindInvalidState, "modify", "job %s is %s", jobID, fj.job.Status)
	}
	updated := 0
	for _, ch := range req.Changes {
		date, shift, err := models.ParseSlotKey(ch.SlotKey)
		if err != nil {
			continue
		}
		day := fj.job.RosterData[date]
		current, ok := day[shift]
		if !ok {
			continue
		}
		next := ""
		if ch.Action == ActionAdd {
			next = ch.Doctor
		}
		if (dataset.IsVacant(current) && next == "") || current == next {
			continue
		}
		day[shift] = next
		fj.job.MarkModified(ch.SlotKey)
		updated++
	}
	if updated > 0 {
		f.render(fj.job)
	}
	return updated, nil
}

func (f *Fake) Reassign(_ context.Context, jobID string, req ReassignRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Reassign")
	if err := Validate("reassign", req); err != nil {
		return err
	}
	fj, err := f.lookup("reassign", jobID)
	if err != nil {
		return err
	}
	day := fj.job.RosterData[req.Date]
	current, ok := day[req.ShiftType]
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "reassign", "no slot %s", req.SlotKey())
	}
	if current != req.From {
		return apperr.Newf(apperr.KindConflict, "reassign", "slot %s is held by %q, not %q", req.SlotKey(), current, req.From)
	}
	day[req.ShiftType] = req.To
	fj.job.MarkModified(req.SlotKey())
	f.render(fj.job)
	return nil
}

func (f *Fake) Distribute(_ context.Context, jobID string, opts DistributeOptions) (*DistributeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Distribute")
	if err := Validate("distribute", opts); err != nil {
		return nil, err
	}
	fj, err := f.lookup("distribute", jobID)
	if err != nil {
		return nil, err
	}
	if !fj.job.Finalized {
		return nil, apperr.Newf(apperr.KindNotFinalized, "distribute", "job %s is not finalized", jobID)
	}

	res := &DistributeResult{}
	for _, doctor := range dataset.CalendarFromRosterData(fj.job.RosterData).Doctors() {
		switch {
		case opts.TestMode:
			res.Successful = append(res.Successful, Recipient{Doctor: doctor, Email: opts.TestEmail})
		case f.Undeliverable[doctor] != "":
			res.Failed = append(res.Failed, Recipient{Doctor: doctor, Email: f.Contacts[doctor], Reason: f.Undeliverable[doctor]})
		case f.Contacts[doctor] == "":
			res.Skipped = append(res.Skipped, Recipient{Doctor: doctor, Reason: "no email address on file"})
		default:
			res.Successful = append(res.Successful, Recipient{Doctor: doctor, Email: f.Contacts[doctor]})
		}
	}
	return res, nil
}

// Export renders the calendar view for scope all, the doctor view for
// distribution, and the doctor summary for management. PDF exports wrap the
// same text in a minimal document.
func (f *Fake) Export(_ context.Context, jobID string, req ExportRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("Export")
	if err := Validate("export", req); err != nil {
		return nil, err
	}
	fj, err := f.lookup("export", jobID)
	if err != nil {
		return nil, err
	}
	if fj.job.Outputs.IsEmpty() {
		return nil, apperr.Newf(apperr.KindInvalidState, "export", "job %s has no roster yet", jobID)
	}
	var body string
	switch req.Scope {
	case ScopeDistribution:
		body = fj.job.Outputs.DoctorView
	case ScopeManagement:
		body = fj.job.Outputs.DoctorSummary
	default:
		body = fj.job.Outputs.CalendarView
	}
	if req.Format == FormatPDF {
		body = "%PDF-1.4\n% roster " + jobID + "\n" + body + "%%EOF\n"
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *Fake) ListJobs(_ context.Context, from, to string) ([]JobSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListJobs")
	var out []JobSummary
	for _, id := range slices.Sorted(maps.Keys(f.jobsMap())) {
		fj := f.jobs[id]
		s := JobSummary{ID: id, Status: fj.job.Status, StartDate: fj.start, EndDate: fj.end, CreatedAt: fj.job.CreatedAt}
		if (from == "" && to == "") || s.Overlaps(from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Fake) jobsMap() map[string]*fakeJob {
	if f.jobs == nil {
		f.jobs = map[string]*fakeJob{}
	}
	return f.jobs
}

func (f *Fake) count(method string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
}

func (f *Fake) lookup(op, jobID string) (*fakeJob, error) {
	fj, ok := f.jobsMap()[jobID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, op, "job %s not found", jobID)
	}
	return fj, nil
}

func (f *Fake) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// generate fills a roster for the requested period. Two clinical shifts per
// site plus one admin shift per day; every seventh slot is left vacant.
func (f *Fake) generate(p *models.GenerationParams) models.RosterData {
	data := models.RosterData{}
	if p == nil {
		return data
	}
	start, err := time.Parse(time.DateOnly, p.StartDate)
	if err != nil {
		return data
	}
	sites := p.Sites
	if len(sites) == 0 {
		sites = []string{"Frankston", "Rosebud"}
	}
	var shifts []string
	for _, site := range sites {
		shifts = append(shifts, site+" Blue AM", site+" Red PM")
	}
	shifts = append(shifts, sites[0]+" Admin-1 Admin")

	doctors := f.Doctors
	if len(doctors) == 0 {
		doctors = DefaultDoctors
	}
	n := 0
	for d := 0; d < p.Weeks*7; d++ {
		date := start.AddDate(0, 0, d).Format(time.DateOnly)
		day := make(map[string]string, len(shifts))
		for _, s := range shifts {
			n++
			if n%7 == 0 {
				day[s] = ""
				continue
			}
			day[s] = doctors[n%len(doctors)]
		}
		data[date] = day
	}
	return data
}

var summaryColumns = []string{
	"EFT", "Total_Hours", "Max_Hours", "EFT_Utilization_%", "Total_Shifts",
	"Undesirable_Shifts", "Clinical_Shifts", "Admin_Shifts", "Remaining_Hours",
}

// render rebuilds the three output documents from the roster data.
func (f *Fake) render(j *models.RosterJob) {
	cal := dataset.CalendarFromRosterData(j.RosterData)
	doctors := dataset.DoctorGridFromCalendar(cal)
	engine := analytics.NewEngine(analytics.DefaultRules())
	report := engine.Analyze(analytics.Input{Calendar: cal, Doctors: doctors})

	rules := engine.Rules()
	weeks := float64(max(1, (len(cal.Days)+6)/7))
	rows := make([]dataset.TableRow, 0, len(report.Doctors))
	for _, d := range report.Doctors {
		maxHours := d.EstimatedFTE * rules.FullTimeHours * weeks
		rows = append(rows, dataset.TableRow{Key: d.Doctor, Cells: []string{
			formatFloat(d.EstimatedFTE),
			formatFloat(d.TotalHours),
			formatFloat(maxHours),
			formatFloat(d.Utilization),
			strconv.Itoa(d.TotalShifts),
			strconv.Itoa(d.UndesirableShifts),
			strconv.Itoa(d.ClinicalShifts),
			strconv.Itoa(d.AdminShifts),
			formatFloat(max(0, maxHours-d.TotalHours)),
		}})
	}
	j.Outputs = &models.RosterOutputs{
		CalendarView:  dataset.FormatCalendar(cal),
		DoctorView:    dataset.FormatDoctorView(doctors),
		DoctorSummary: dataset.FormatTable("Doctor_Name", summaryColumns, rows),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(metrics.Round2(v), 'f', 2, 64)
}
