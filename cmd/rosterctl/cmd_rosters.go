package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/catalog"
	"github.com/peninsula-health/rosterctl/internal/dataset"
	"github.com/peninsula-health/rosterctl/internal/models"
	"github.com/peninsula-health/rosterctl/internal/reporting"
	"github.com/spf13/cobra"
)

func newRostersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rosters",
		Aliases: []string{"roster"},
		Short:   "Manage the local catalogue of saved rosters",
	}
	cmd.AddCommand(newRostersListCommand(a))
	cmd.AddCommand(newRostersShowCommand(a))
	cmd.AddCommand(newRostersRenameCommand(a))
	cmd.AddCommand(newRostersArchiveCommand(a, true))
	cmd.AddCommand(newRostersArchiveCommand(a, false))
	cmd.AddCommand(newRostersDeleteCommand(a))
	cmd.AddCommand(newRostersRecomputeCommand(a))
	cmd.AddCommand(newRostersExportCommand(a))
	cmd.AddCommand(newRostersImportCommand(a))
	return cmd
}

func newRostersListCommand(a *app) *cobra.Command {
	var (
		opts   catalog.ListOptions
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved rosters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			rosters, err := cat.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, rosters)
			}
			if len(rosters) == 0 {
				fmt.Fprintln(a.out, "No saved rosters") //nolint:errcheck
				return nil
			}
			reporting.WriteRosterTable(a.out, rosters)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.SortBy, "sort", catalog.SortByDate, "Sort by date, name or coverage")
	cmd.Flags().StringVar(&opts.Order, "order", "desc", "Sort order: asc or desc")
	cmd.Flags().BoolVar(&opts.IncludeArchived, "all", false, "Include archived rosters")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printSavedRoster(a *app, r *models.SavedRoster) {
	fmt.Fprintf(a.out, "Roster:    %s\n", r.ID)                                            //nolint:errcheck
	fmt.Fprintf(a.out, "Name:      %s\n", r.Name)                                          //nolint:errcheck
	fmt.Fprintf(a.out, "Job:       %s\n", r.JobID)                                         //nolint:errcheck
	fmt.Fprintf(a.out, "Period:    %s to %s\n", r.StartDate, r.EndDate)                    //nolint:errcheck
	fmt.Fprintf(a.out, "Sites:     %s\n", strings.Join(r.Sites, ", "))                     //nolint:errcheck
	fmt.Fprintf(a.out, "Saved:     %s\n", r.CreatedAt.Local().Format(time.DateTime))       //nolint:errcheck
	fmt.Fprintf(a.out, "Shifts:    %d across %d doctors\n", r.TotalShifts, r.TotalDoctors) //nolint:errcheck
	fmt.Fprintf(a.out, "Coverage:  %d%%\n", r.CoverageRate)                                //nolint:errcheck
	fmt.Fprintf(a.out, "Archived:  %t\n", r.Archived)                                      //nolint:errcheck
	fmt.Fprintf(a.out, "Finalized: %t\n", r.Job != nil && r.Job.Finalized)                 //nolint:errcheck
}

func newRostersShowCommand(a *app) *cobra.Command {
	var asJSON, calendar bool
	cmd := &cobra.Command{
		Use:   "show <roster-id>",
		Short: "Show a saved roster with its analytics summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, err := cat.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, r)
			}
			printSavedRoster(a, r)
			if r.Job == nil {
				return nil
			}
			if rep, err := a.cfg.Analytics.Engine().AnalyzeJob(r.Job); err == nil {
				fmt.Fprintln(a.out)                                   //nolint:errcheck
				fmt.Fprint(a.out, reporting.FormatSummaryReport(rep)) //nolint:errcheck
			}
			if calendar {
				if g := jobCalendar(r.Job); g != nil {
					fmt.Fprintln(a.out)                          //nolint:errcheck
					fmt.Fprint(a.out, dataset.FormatCalendar(g)) //nolint:errcheck
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&calendar, "calendar", false, "Print the roster calendar")
	return cmd
}

func newRostersRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <roster-id> <name>",
		Short: "Rename a saved roster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, err := cat.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Renamed %s to %q\n", r.ID, r.Name) //nolint:errcheck
			return nil
		},
	}
}

func newRostersArchiveCommand(a *app, archive bool) *cobra.Command {
	use, short, verb := "archive", "Hide a saved roster from the default listing", "Archived"
	if !archive {
		use, short, verb = "unarchive", "Return an archived roster to the default listing", "Unarchived"
	}
	return &cobra.Command{
		Use:   use + " <roster-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			if archive {
				_, err = cat.Archive(cmd.Context(), args[0])
			} else {
				_, err = cat.Unarchive(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", verb, args[0]) //nolint:errcheck
			return nil
		},
	}
}

func newRostersDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <roster-id>",
		Short: "Delete a saved roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			if !yes && !promptConfirm(a.in, a.errOut, fmt.Sprintf("Delete saved roster %s?", args[0])) {
				return apperr.New(apperr.KindValidation, "delete", "not confirmed; pass --yes to delete without prompting")
			}
			ok, err := cat.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(a.out, "No saved roster %s\n", args[0]) //nolint:errcheck
				return nil
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0]) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newRostersRecomputeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [roster-id]",
		Short: "Recompute summary statistics from the saved job snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				r, changed, err := cat.RecomputeStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				state := "unchanged"
				if changed {
					state = "updated"
				}
				fmt.Fprintf(a.out, "%s %s: %d shifts, %d doctors, %d%% coverage\n", //nolint:errcheck
					r.ID, state, r.TotalShifts, r.TotalDoctors, r.CoverageRate)
				return nil
			}
			n, err := cat.RecomputeAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated %d saved roster(s)\n", n) //nolint:errcheck
			return nil
		},
	}
}

func newRostersExportCommand(a *app) *cobra.Command {
	var (
		output   string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every saved roster to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := cat.ExportAll(cmd.Context(), a.out, compress)
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			n, err := cat.ExportAll(cmd.Context(), f, compress)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "Exported %d roster(s) to %s\n", n, output) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&compress, "gzip", false, "Gzip the output")
	return cmd
}

func newRostersImportCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the catalogue with an exported file",
		Long: `Replace the whole catalogue with the rosters in an exported file.

The file may be gzip-compressed and may be a bare JSON array of rosters. It
is validated in full first; if any entry is invalid nothing is changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close() //nolint:errcheck
			if !yes && !promptConfirm(a.in, a.errOut, "Replace every saved roster with the contents of "+args[0]+"?") {
				return apperr.New(apperr.KindValidation, "import", "not confirmed; pass --yes to import without prompting")
			}
			n, err := cat.ImportAll(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Imported %d roster(s)\n", n) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
