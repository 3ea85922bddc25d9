package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/models"
)

// DefaultCapacity is the number of saved rosters kept before the oldest are evicted.
const DefaultCapacity = 50

// Catalog is the saved-roster service on top of a Store.
type Catalog struct {
	store      Store
	capacity   int
	strategies []StatsStrategy
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithStrategies replaces DefaultStrategies.
func WithStrategies(s ...StatsStrategy) Option {
	return func(c *Catalog) {
		c.strategies = s
	}
}

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithIDGenerator sets the identifier source. The default is a random UUID.
func WithIDGenerator(f func() string) Option {
	return func(c *Catalog) {
		c.newID = f
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

// New creates a Catalog over store.
func New(store Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:      store,
		capacity:   DefaultCapacity,
		strategies: DefaultStrategies,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Capacity reports the eviction threshold.
func (c *Catalog) Capacity() int { return c.capacity }

// Save stores a completed job. name may be empty, in which case one is
// derived from the roster period.
func (c *Catalog) Save(ctx context.Context, job *models.RosterJob, name string) (*models.SavedRoster, error) {
	const op = "save"
	if job == nil || job.ID == "" {
		return nil, apperr.New(apperr.KindValidation, op, "job is required")
	}
	if job.Status != models.JobCompleted {
		return nil, apperr.Newf(apperr.KindInvalidState, op, "job %s is %s; only completed rosters can be saved", job.ID, job.Status)
	}

	now := c.now()
	r := &models.SavedRoster{
		ID:          c.newID(),
		JobID:       job.ID,
		Job:         job.Clone(),
		CreatedAt:   now,
		GeneratedAt: now,
	}
	if job.CompletedAt != nil {
		r.GeneratedAt = *job.CompletedAt
	}
	r.StartDate, r.EndDate, r.Sites = period(job)
	r.Name = strings.TrimSpace(name)
	if r.Name == "" {
		r.Name = defaultName(r)
	}
	stats, source := DeriveStats(job, c.strategies)
	r.ApplyStats(stats)

	evicted, err := c.store.Insert(ctx, r, c.capacity)
	if err != nil {
		return nil, err
	}
	c.logger.Info("roster saved", "roster_id", r.ID, "job_id", job.ID, "stats_source", source, "coverage", r.CoverageRate)
	if len(evicted) > 0 {
		c.logger.Info("evicted old rosters", "count", len(evicted), "ids", evicted)
	}
	return r, nil
}

// period prefers the generation parameters and falls back to the roster itself.
func period(job *models.RosterJob) (start, end string, sites []string) {
	if p := job.Params; p != nil {
		start, end, sites = p.StartDate, p.EndDate, slices.Clone(p.Sites)
	}
	var grid *dataset.CalendarGrid
	switch {
	case len(job.RosterData) > 0:
		grid = dataset.CalendarFromRosterData(job.RosterData)
	case job.Outputs != nil && job.Outputs.CalendarView != "":
		grid = dataset.ParseCalendar(job.Outputs.CalendarView)
	default:
		return start, end, sites
	}
	if len(grid.Days) > 0 {
		if start == "" {
			start = grid.Days[0].Date
		}
		if end == "" {
			end = grid.Days[len(grid.Days)-1].Date
		}
	}
	if len(sites) == 0 {
		for _, st := range grid.ShiftTypes {
			site, _, _ := strings.Cut(st, " ")
			if site != "" && !slices.Contains(sites, site) {
				sites = append(sites, site)
			}
		}
	}
	return start, end, sites
}

func defaultName(r *models.SavedRoster) string {
	if r.StartDate != "" && r.EndDate != "" {
		return fmt.Sprintf("Roster %s to %s", r.StartDate, r.EndDate)
	}
	return "Roster " + r.JobID
}

// Get returns one saved roster.
func (c *Catalog) Get(ctx context.Context, id string) (*models.SavedRoster, error) {
	return c.store.Get(ctx, id)
}

// Sort fields accepted by List.
const (
	SortByDate     = "date"
	SortByName     = "name"
	SortByCoverage = "coverage"
)

// ListOptions controls List. Zero values list unarchived rosters, newest first.
type ListOptions struct {
	SortBy          string
	Order           string
	IncludeArchived bool
}

// List returns saved rosters in the requested order. Ties keep catalogue order.
func (c *Catalog) List(ctx context.Context, opts ListOptions) ([]*models.SavedRoster, error) {
	const op = "list"
	var cmpFn func(a, b *models.SavedRoster) int
	switch opts.SortBy {
	case "", SortByDate:
		cmpFn = func(a, b *models.SavedRoster) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortByName:
		cmpFn = func(a, b *models.SavedRoster) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortByCoverage:
		cmpFn = func(a, b *models.SavedRoster) int { return cmp.Compare(a.CoverageRate, b.CoverageRate) }
	default:
		return nil, apperr.Newf(apperr.KindValidation, op, "sort field %q must be one of date, name, coverage", opts.SortBy)
	}
	desc := true
	switch strings.ToLower(opts.Order) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		return nil, apperr.Newf(apperr.KindValidation, op, "order %q must be asc or desc", opts.Order)
	}

	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SavedRoster, 0, len(all))
	for _, r := range all {
		if r.Archived && !opts.IncludeArchived {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b *models.SavedRoster) int {
		if desc {
			return cmpFn(b, a)
		}
		return cmpFn(a, b)
	})
	return out, nil
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	Name     *string
	Archived *bool
}

// Update applies p to a saved roster.
func (c *Catalog) Update(ctx context.Context, id string, p Patch) (*models.SavedRoster, error) {
	r, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.New(apperr.KindValidation, "rename", "name must not be empty")
		}
		r.Name = name
	}
	if p.Archived != nil {
		r.Archived = *p.Archived
	}
	if err := c.store.Put(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Rename sets a roster's display name.
func (c *Catalog) Rename(ctx context.Context, id, name string) (*models.SavedRoster, error) {
	return c.Update(ctx, id, Patch{Name: &name})
}

// Archive hides a roster from default listings.
func (c *Catalog) Archive(ctx context.Context, id string) (*models.SavedRoster, error) {
	archived := true
	return c.Update(ctx, id, Patch{Archived: &archived})
}

// Unarchive restores a roster to default listings.
func (c *Catalog) Unarchive(ctx context.Context, id string) (*models.SavedRoster, error) {
	archived := false
	return c.Update(ctx, id, Patch{Archived: &archived})
}

// Delete removes a roster and reports whether it existed.
func (c *Catalog) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.store.Delete(ctx, id)
	if err == nil && ok {
		c.logger.Info("roster deleted", "roster_id", id)
	}
	return ok, err
}

// RecomputeStats re-derives the summary numbers of one roster from its
// embedded job. It reports whether anything changed; a second call without
// new data never does.
func (c *Catalog) RecomputeStats(ctx context.Context, id string) (*models.SavedRoster, bool, error) {
	r, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	changed, err := c.recompute(ctx, r)
	return r, changed, err
}

func (c *Catalog) recompute(ctx context.Context, r *models.SavedRoster) (bool, error) {
	stats, source := DeriveStats(r.Job, c.strategies)
	if stats == r.Stats() {
		return false, nil
	}
	c.logger.Debug("stats changed", "roster_id", r.ID, "stats_source", source, "old", r.Stats(), "new", stats)
	r.ApplyStats(stats)
	return true, c.store.Put(ctx, r)
}

// RecomputeAll re-derives every roster's numbers and returns how many changed.
func (c *Catalog) RecomputeAll(ctx context.Context) (int, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range all {
		changed, err := c.recompute(ctx, r)
		if err != nil {
			return n, fmt.Errorf("recomputing roster %s: %w", r.ID, err)
		}
		if changed {
			n++
		}
	}
	c.logger.Info("recomputed roster stats", "count", len(all), "changed", n)
	return n, nil
}

// SyncJob replaces the embedded snapshot of every roster saved from job and
// recomputes their numbers. It returns how many rosters were touched.
func (c *Catalog) SyncJob(ctx context.Context, job *models.RosterJob) (int, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range all {
		if r.JobID != job.ID {
			continue
		}
		r.Job = job.Clone()
		stats, _ := DeriveStats(r.Job, c.strategies)
		r.ApplyStats(stats)
		if err := c.store.Put(ctx, r); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		c.logger.Info("saved rosters refreshed", "job_id", job.ID, "count", n)
	}
	return n, nil
}
