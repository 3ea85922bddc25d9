package main

import (
	"fmt"

	"github.com/peninsula-health/rosterctl/internal/apperr"
	"github.com/peninsula-health/rosterctl/internal/backup"
	"github.com/spf13/cobra"
)

func newBackupCommand(a *app) *cobra.Command {
	var blobName string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the roster catalogue to or from Azure Blob Storage",
		Long: `Copy the roster catalogue to or from Azure Blob Storage.

Configure backup.account_url (signed in with the Azure CLI, managed identity
or environment credentials) or backup.connection_string in .rosterctl.yaml,
or set AZURE_STORAGE_CONNECTION_STRING.`,
	}
	cmd.PersistentFlags().StringVar(&blobName, "blob", "", "Blob name (default: backup.blob)")

	service := func(cmd *cobra.Command) (*backup.Service, string, error) {
		cat, err := a.catalog(cmd.Context())
		if err != nil {
			return nil, "", err
		}
		blobs, err := newBlobs(a.cfg.Backup)
		if err != nil {
			return nil, "", err
		}
		name := blobName
		if name == "" {
			name = a.cfg.Backup.Blob
		}
		return backup.New(blobs, cat, a.logger), name, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, name, err := service(cmd)
			if err != nil {
				return err
			}
			n, err := svc.Push(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Backed up %d roster(s) to %s/%s\n", n, a.cfg.Backup.Container, name) //nolint:errcheck
			return nil
		},
	})

	var yes bool
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Replace the catalogue with the uploaded copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, name, err := service(cmd)
			if err != nil {
				return err
			}
			if !yes && !promptConfirm(a.in, a.errOut, "Replace every saved roster with the backup "+name+"?") {
				return apperr.New(apperr.KindValidation, "restore", "not confirmed; pass --yes to restore without prompting")
			}
			n, err := svc.Pull(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Restored %d roster(s) from %s/%s\n", n, a.cfg.Backup.Container, name) //nolint:errcheck
			return nil
		},
	}
	pull.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(pull)
	return cmd
}
