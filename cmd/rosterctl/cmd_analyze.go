package main

import (
	"context"
	"fmt"
	"os"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/peninsula-health/rosterctl/internal/reporting"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type analyzeOptions struct {
	job      string
	roster   string
	calendar string
	doctors  string
	summary  string
	xlsx     string
	asJSON   bool
}

func newAnalyzeCommand(a *app) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report vacancies, fairness and utilization for a roster",
		Long: `Report vacancies, undesirable-shift fairness and utilization for a roster.

The roster comes from a job on the service (--job), a saved roster
(--roster), or the optimizer's output files (--calendar, with optional
--doctors and --summary).`,
		Example: `  rosterctl analyze --job job-0001
  rosterctl analyze --calendar calendar.csv --doctors doctors.csv --summary summary.csv --xlsx report.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return analyzeCommandE(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.job, "job", "", "Analyze a job on the service")
	cmd.Flags().StringVar(&opts.roster, "roster", "", "Analyze a saved roster")
	cmd.Flags().StringVar(&opts.calendar, "calendar", "", "Calendar view file")
	cmd.Flags().StringVar(&opts.doctors, "doctors", "", "Doctor view file")
	cmd.Flags().StringVar(&opts.summary, "summary", "", "Doctor summary file")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "Also write the report to an XLSX workbook")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	cmd.MarkFlagsMutuallyExclusive("job", "roster", "calendar")
	cmd.MarkFlagsOneRequired("job", "roster", "calendar")
	return cmd
}

func analyzeCommandE(ctx context.Context, a *app, opts analyzeOptions) error {
	engine := a.cfg.Analytics.Engine()

	var (
		rep *analytics.Report
		err error
	)
	switch {
	case opts.calendar != "":
		var in analytics.Input
		in, err = loadInput(ctx, opts.calendar, opts.doctors, opts.summary)
		if err != nil {
			return err
		}
		rep = engine.Analyze(in)
	default:
		var job *models.RosterJob
		job, err = a.analysisJob(ctx, opts)
		if err != nil {
			return err
		}
		rep, err = engine.AnalyzeJob(job)
		if err != nil {
			return apperr.Wrap(apperr.KindInvalidState, "analyze", err)
		}
	}

	if opts.xlsx != "" {
		if err := writeWorkbookFile(opts.xlsx, rep); err != nil {
			return err
		}
		fmt.Fprintf(a.errOut, "Wrote %s\n", opts.xlsx) //nolint:errcheck
	}
	if opts.asJSON {
		return writeJSON(a.out, rep)
	}

	fmt.Fprint(a.out, reporting.FormatSummaryReport(rep)) //nolint:errcheck
	fmt.Fprintln(a.out)                                   //nolint:errcheck
	reporting.WriteDoctorTable(a.out, rep)
	if len(rep.Vacancy.ByShift) > 0 {
		fmt.Fprintln(a.out) //nolint:errcheck
		reporting.WriteVacancyTable(a.out, rep)
	}
	return nil
}

func (a *app) analysisJob(ctx context.Context, opts analyzeOptions) (*models.RosterJob, error) {
	if opts.roster != "" {
		cat, err := a.catalog(ctx)
		if err != nil {
			return nil, err
		}
		r, err := cat.Get(ctx, opts.roster)
		if err != nil {
			return nil, err
		}
		return r.Job, nil
	}
	orch, err := a.jobs()
	if err != nil {
		return nil, err
	}
	return orch.Poll(ctx, opts.job)
}

// loadInput reads and parses the three optimizer documents concurrently.
// Each goroutine fills a distinct field of the result.
func loadInput(ctx context.Context, calendarPath, doctorsPath, summaryPath string) (analytics.Input, error) {
	var in analytics.Input
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := dataset.ReadDocument(calendarPath)
		if err != nil {
			return err
		}
		in.Calendar = dataset.ParseCalendar(doc)
		return nil
	})
	if doctorsPath != "" {
		g.Go(func() error {
			doc, err := dataset.ReadDocument(doctorsPath)
			if err != nil {
				return err
			}
			in.Doctors = dataset.ParseDoctorView(doc)
			return nil
		})
	}
	if summaryPath != "" {
		g.Go(func() error {
			doc, err := dataset.ReadDocument(summaryPath)
			if err != nil {
				return err
			}
			in.Summary = dataset.ParseDoctorSummary(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return analytics.Input{}, apperr.Wrap(apperr.KindValidation, "analyze", err)
	}
	return in, nil
}

func writeWorkbookFile(path string, rep *analytics.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := reporting.WriteWorkbook(f, rep); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
