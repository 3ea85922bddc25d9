package main

import (
	"context"
	"fmt"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/spf13/cobra"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		req    jobclient.SubmitRequest
		name   string
		yes    bool
		noWait bool
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new roster",
		Long: `Submit a roster generation job and wait for it to finish.

Existing jobs whose period overlaps the requested one are listed first and
you are asked to confirm. The finished roster is saved to the local
catalogue unless --no-save is given.`,
		Example: `  rosterctl generate --start 2025-01-06 --weeks 4
  rosterctl generate --start 2025-02-03 --weeks 2 --site Frankston --site Rosebud --name "February"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			orch, err := a.jobs()
			if err != nil {
				return err
			}

			overlaps, err := orch.CheckOverlap(ctx, req)
			if err != nil {
				return err
			}
			if len(overlaps) > 0 {
				fmt.Fprintf(a.errOut, "⚠ %d existing job(s) overlap %s to %s:\n", len(overlaps), req.StartDate, req.EndDate()) //nolint:errcheck
				for _, j := range overlaps {
					fmt.Fprintf(a.errOut, "  %s  %-9s  %s to %s\n", j.ID, j.Status, j.StartDate, j.EndDate) //nolint:errcheck
				}
				if !yes && !promptConfirm(a.in, a.errOut, "Generate an overlapping roster anyway?") {
					return apperr.New(apperr.KindConflict, "generate", "overlapping roster jobs exist; pass --yes to generate anyway")
				}
			}

			id, err := orch.Submit(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Submitted job %s\n", id) //nolint:errcheck
			if noWait {
				return nil
			}

			job, err := a.watchJob(ctx, orch, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job %s completed\n", id) //nolint:errcheck
			if noSave {
				return nil
			}
			return a.saveRoster(ctx, job, name)
		},
	}

	cmd.Flags().StringVar(&req.StartDate, "start", "", "First day of the roster (YYYY-MM-DD)")
	cmd.Flags().IntVar(&req.Weeks, "weeks", 4, "Number of weeks to roster")
	cmd.Flags().StringSliceVar(&req.Sites, "site", nil, "Restrict to a site (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "Name for the saved roster (default: its period)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Generate even when other jobs overlap")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the job is submitted")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the finished roster")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func (a *app) saveRoster(ctx context.Context, job *models.RosterJob, name string) error {
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	r, err := cat.Save(ctx, job, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved roster %s %q: %d shifts, %d doctors, %d%% coverage\n", //nolint:errcheck
		r.ID, r.Name, r.TotalShifts, r.TotalDoctors, r.CoverageRate)
	return nil
}
