package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/peninsula-health/rosterctl/internal/orchestration"
	"github.com/peninsula-health/rosterctl/internal/spinner"
	"github.com/spf13/cobra"
)

// watchJob follows a job to a terminal state, drawing a spinner when
// stderr is a terminal and plain progress lines otherwise.
func (a *app) watchJob(ctx context.Context, orch *orchestration.Orchestrator, jobID string) (*models.RosterJob, error) {
	var (
		onProgress orchestration.ProgressFunc
		sp         *spinner.Spinner
	)
	if isTerminal(a.errOut) {
		sp = spinner.Start(a.errOut, "Waiting for "+jobID)
		onProgress = func(j *models.RosterJob) { sp.Update(j.Progress, j.Message) }
	} else {
		last := -1
		onProgress = func(j *models.RosterJob) {
			if j.Progress != last {
				fmt.Fprintf(a.errOut, "%3d%% %s\n", j.Progress, j.Message) //nolint:errcheck
				last = j.Progress
			}
		}
	}

	job, err := orch.Watch(ctx, jobID, onProgress)
	if sp != nil {
		sp.Stop()
	}
	if err != nil && ctx.Err() != nil {
		fmt.Fprintf(a.errOut, "Stopped watching. Job %s keeps running; use 'rosterctl cancel %s' to stop it.\n", jobID, jobID) //nolint:errcheck
	}
	return job, err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJob(w io.Writer, job *models.RosterJob) {
	fmt.Fprintf(w, "Job:       %s\n", job.ID)                          //nolint:errcheck
	fmt.Fprintf(w, "Status:    %s (%d%%)\n", job.Status, job.Progress) //nolint:errcheck
	if job.Message != "" {
		fmt.Fprintf(w, "Message:   %s\n", job.Message) //nolint:errcheck
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.Error) //nolint:errcheck
	}
	if p := job.Params; p != nil {
		fmt.Fprintf(w, "Period:    %s to %s (%d weeks)\n", p.StartDate, p.EndDate, p.Weeks) //nolint:errcheck
	}
	if job.Finalized {
		at := ""
		if job.FinalizedAt != nil {
			at = " at " + job.FinalizedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "Finalized: by %s%s\n", job.FinalizedBy, at) //nolint:errcheck
	}
	if n := len(job.ModifiedShifts); n > 0 {
		fmt.Fprintf(w, "Modified:  %d shift(s)\n", n) //nolint:errcheck
	}
}

// jobCalendar returns the job's roster as a calendar grid, or nil.
func jobCalendar(job *models.RosterJob) *dataset.CalendarGrid {
	if len(job.RosterData) > 0 {
		return dataset.CalendarFromRosterData(job.RosterData)
	}
	if job.Outputs != nil && job.Outputs.CalendarView != "" {
		return dataset.ParseCalendar(job.Outputs.CalendarView)
	}
	return nil
}

// syncSaved refreshes saved rosters that snapshot job and reports how many changed.
func (a *app) syncSaved(ctx context.Context, job *models.RosterJob) error {
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}
	n, err := cat.SyncJob(ctx, job)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(a.out, "Updated %d saved roster(s)\n", n) //nolint:errcheck
	}
	return nil
}

func newStatusCommand(a *app) *cobra.Command {
	var asJSON, calendar bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a roster job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			job, err := orch.Poll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, job)
			}
			printJob(a.out, job)
			if calendar {
				if g := jobCalendar(job); g != nil {
					fmt.Fprintln(a.out)                          //nolint:errcheck
					fmt.Fprint(a.out, dataset.FormatCalendar(g)) //nolint:errcheck
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the job as JSON")
	cmd.Flags().BoolVar(&calendar, "calendar", false, "Print the roster calendar")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	var (
		save bool
		name string
	)
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Wait for a roster job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			job, err := a.watchJob(cmd.Context(), orch, args[0])
			if job != nil {
				printJob(a.out, job)
			}
			if err != nil {
				return err
			}
			if save {
				return a.saveRoster(cmd.Context(), job, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save the finished roster to the catalogue")
	cmd.Flags().StringVar(&name, "name", "", "Name for the saved roster")
	return cmd
}

func newCancelCommand(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running roster job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			job, err := orch.Cancel(cmd.Context(), args[0], message)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job %s is %s\n", job.ID, job.Status) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Reason recorded on the job")
	return cmd
}

// defaultActor is the configured actor, else the login name.
func (a *app) defaultActor() string {
	if a.cfg.Distribution.Actor != "" {
		return a.cfg.Distribution.Actor
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func newFinalizeCommand(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "finalize <job-id>",
		Short: "Lock a completed roster for distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			if actor == "" {
				actor = a.defaultActor()
			}
			job, err := orch.Finalize(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job %s finalized by %s\n", job.ID, job.FinalizedBy) //nolint:errcheck
			return a.syncSaved(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "Who is finalizing (default: distribution.actor or login name)")
	return cmd
}

func newUnfinalizeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unfinalize <job-id>",
		Short: "Unlock a finalized roster for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			job, err := orch.Unfinalize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Job %s is no longer finalized\n", job.ID) //nolint:errcheck
			return a.syncSaved(cmd.Context(), job)
		},
	}
}

func newDistributeCommand(a *app) *cobra.Command {
	var (
		testEmail string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "distribute <job-id>",
		Short: "Email a finalized roster to its doctors",
		Long: `Email a finalized roster to every doctor on it.

With --test-email every message goes to that address instead, which is the
safe way to check a roster before sending it for real.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			if testEmail == "" {
				testEmail = a.cfg.Distribution.TestEmail
			}
			opts := jobclient.DistributeOptions{TestMode: testEmail != "", TestEmail: testEmail}
			if !opts.TestMode && !yes && !promptConfirm(a.in, a.errOut, fmt.Sprintf("Email roster %s to all doctors?", args[0])) {
				return apperr.New(apperr.KindValidation, "distribute", "not confirmed; pass --yes to send without prompting")
			}

			res, err := orch.Distribute(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Sent %d, failed %d, skipped %d\n", len(res.Successful), len(res.Failed), len(res.Skipped)) //nolint:errcheck
			for _, r := range res.Failed {
				fmt.Fprintf(a.out, "  ✗ %s: %s\n", r.Doctor, r.Reason) //nolint:errcheck
			}
			for _, r := range res.Skipped {
				fmt.Fprintf(a.out, "  - %s: %s\n", r.Doctor, r.Reason) //nolint:errcheck
			}
			return res.PartialFailure()
		},
	}
	cmd.Flags().StringVar(&testEmail, "test-email", "", "Send every message to this address instead")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var format, scope, output string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Download a roster rendering as CSV or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.jobs()
			if err != nil {
				return err
			}
			req := jobclient.ExportRequest{
				Format: jobclient.ExportFormat(strings.ToLower(format)),
				Scope:  jobclient.ExportScope(strings.ToLower(scope)),
			}
			if output == "-" {
				_, err := orch.Export(cmd.Context(), args[0], req, a.out)
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.%s", args[0], req.Scope, req.Format)
			}
			if err := jobclient.Validate("export", req); err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			n, err := orch.Export(cmd.Context(), args[0], req, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(a.out, "Wrote %d bytes to %s\n", n, output) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(jobclient.FormatCSV), "File format: csv or pdf")
	cmd.Flags().StringVar(&scope, "scope", string(jobclient.ScopeAll), "Audience: all, distribution or management")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, or - for stdout (default: <job>-<scope>.<format>)")
	return cmd
}
