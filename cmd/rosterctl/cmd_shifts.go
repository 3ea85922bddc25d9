package main

import (
	"fmt"
	"strings"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/modification"
	"github.com/spf13/cobra"
)

func newShiftsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shifts",
		Short: "Edit shifts on a completed roster",
		Long: `Edit shifts on a completed, unfinalized roster.

Slots are named by their slot key, "<date>|<shift type>", for example
"2025-01-06|Frankston Blue AM". Saved copies of the roster are refreshed
after every edit.`,
	}
	cmd.AddCommand(newShiftsAddCommand(a))
	cmd.AddCommand(newShiftsRemoveCommand(a))
	cmd.AddCommand(newShiftsReassignCommand(a))
	return cmd
}

// parseAssignment splits "<slot key>=<doctor>".
func parseAssignment(arg string) (modification.Assignment, error) {
	i := strings.LastIndex(arg, "=")
	if i < 0 {
		return modification.Assignment{}, apperr.Newf(apperr.KindValidation, "modify", "%q is not <slot key>=<doctor>", arg)
	}
	return modification.Assignment{SlotKey: strings.TrimSpace(arg[:i]), Doctor: strings.TrimSpace(arg[i+1:])}, nil
}

func (a *app) printBatch(res *modification.BatchResult) error {
	fmt.Fprintf(a.out, "Applied %d of %d change(s)\n", res.Applied, res.Requested) //nolint:errcheck
	for _, f := range res.Failed {
		fmt.Fprintf(a.out, "  ✗ %s: %s\n", f.SlotKey, f.Reason) //nolint:errcheck
	}
	if len(res.Failed) > 0 {
		return apperr.Newf(apperr.KindPartialFailure, "modify", "%d of %d change(s) rejected", len(res.Failed), res.Requested)
	}
	return nil
}

func newShiftsAddCommand(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:     "add <job-id> <slot-key>=<doctor>...",
		Short:   "Assign doctors to slots",
		Example: `  rosterctl shifts add job-0001 "2025-01-07|Rosebud Red PM=Dr Chen"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			adds := make([]modification.Assignment, 0, len(args)-1)
			for _, arg := range args[1:] {
				as, err := parseAssignment(arg)
				if err != nil {
					return err
				}
				adds = append(adds, as)
			}
			svc, err := a.editor()
			if err != nil {
				return err
			}
			res, err := svc.AddShifts(cmd.Context(), args[0], adds, reason)
			if err != nil {
				return err
			}
			if res.Applied > 0 && res.Job != nil {
				if err := a.syncSaved(cmd.Context(), res.Job); err != nil {
					return err
				}
			}
			return a.printBatch(res)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the edit")
	return cmd
}

func newShiftsRemoveCommand(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "remove <job-id> <slot-key>...",
		Short: "Vacate slots",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.editor()
			if err != nil {
				return err
			}
			res, err := svc.RemoveShifts(cmd.Context(), args[0], args[1:], reason)
			if err != nil {
				return err
			}
			if res.Applied > 0 && res.Job != nil {
				if err := a.syncSaved(cmd.Context(), res.Job); err != nil {
					return err
				}
			}
			return a.printBatch(res)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the edit")
	return cmd
}

func newShiftsReassignCommand(a *app) *cobra.Command {
	var date, shift, from, to string
	cmd := &cobra.Command{
		Use:   "reassign <job-id>",
		Short: "Move one slot from one doctor to another",
		Long: `Move one slot from one doctor to another.

The slot must still be held by --from. If someone else changed it since
you last looked, nothing is sent and the command exits with status 1.`,
		Example: `  rosterctl shifts reassign job-0001 --date 2025-01-06 --shift "Frankston Blue AM" --from "Dr Adams" --to "Dr Chen"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.editor()
			if err != nil {
				return err
			}
			job, err := svc.Reassign(cmd.Context(), args[0], date, shift, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Reassigned %s|%s from %s to %s\n", date, shift, from, to) //nolint:errcheck
			return a.syncSaved(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Slot date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&shift, "shift", "", "Shift type, e.g. \"Frankston Blue AM\"")
	cmd.Flags().StringVar(&from, "from", "", "Doctor currently holding the slot")
	cmd.Flags().StringVar(&to, "to", "", "Doctor to move the slot to")
	return cmd
}
