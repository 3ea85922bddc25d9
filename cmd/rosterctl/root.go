package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/peninsula-health/rosterctl/internal/backup"
	"github.com/peninsula-health/rosterctl/internal/catalog"
	"github.com/peninsula-health/rosterctl/internal/jobclient"
	"github.com/peninsula-health/rosterctl/internal/modification"
	"github.com/peninsula-health/rosterctl/internal/orchestration"
	"github.com/peninsula-health/rosterctl/internal/projectconfig"
	"github.com/spf13/cobra"
)

var version = "dev"

// newJobClient builds the job-control client. Tests replace it with a fake.
var newJobClient = func(cfg *projectconfig.ProjectConfig, logger *slog.Logger) (jobclient.Client, error) {
	c, err := jobclient.NewHTTPClient(cfg.Server.URL,
		jobclient.WithToken(cfg.Server.Token),
		jobclient.WithTimeout(cfg.Server.Timeout),
		jobclient.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// newBlobs builds the backup object store. Tests replace it.
var newBlobs = func(cfg projectconfig.BackupConfig) (backup.Blobs, error) {
	b, err := backup.NewAzureBlobs(backup.Config{
		AccountURL:       cfg.AccountURL,
		ConnectionString: cfg.ConnectionString,
		Container:        cfg.Container,
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// app carries the collaborators shared by every command of one invocation.
// Clients and stores are built on first use so commands that need neither
// (analyze on local files) work without a server or a writable home.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	debug     bool
	serverURL string
	storePath string

	cfg    *projectconfig.ProjectConfig
	logger *slog.Logger

	client  jobclient.Client
	orch    *orchestration.Orchestrator
	store   catalog.Store
	rosters *catalog.Catalog
}

func (a *app) loadConfig() error {
	if a.debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	a.logger = slog.Default()

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return fmt.Errorf("loading %s: %w", projectconfig.FileName, err)
	}
	cfg.ApplyEnv(os.Getenv)
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	a.cfg = cfg
	return nil
}

// jobs returns the orchestrator, creating the job client on first use.
func (a *app) jobs() (*orchestration.Orchestrator, error) {
	if a.orch != nil {
		return a.orch, nil
	}
	client, err := newJobClient(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.orch = orchestration.New(client,
		orchestration.WithPollInterval(a.cfg.Polling.Interval),
		orchestration.WithMaxAttempts(a.cfg.Polling.MaxAttempts),
		orchestration.WithLogger(a.logger),
	)
	return a.orch, nil
}

// editor returns a modification service sharing the orchestrator's snapshots.
func (a *app) editor() (*modification.Service, error) {
	orch, err := a.jobs()
	if err != nil {
		return nil, err
	}
	return modification.New(a.client, orch, modification.WithLogger(a.logger)), nil
}

// catalog opens the saved-roster store on first use.
func (a *app) catalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.rosters != nil {
		return a.rosters, nil
	}
	path := a.cfg.StorePath()
	var store catalog.Store
	switch a.cfg.Store.Driver {
	case "file":
		store = catalog.NewFileStore(path)
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		s, err := catalog.OpenSQLite(ctx, path, a.logger)
		if err != nil {
			return nil, err
		}
		store = s
	}
	slog.Debug("roster store opened", "driver", a.cfg.Store.Driver, "path", path)
	a.store = store
	a.rosters = catalog.New(store,
		catalog.WithCapacity(a.cfg.Store.Capacity),
		catalog.WithLogger(a.logger),
	)
	return a.rosters, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rosterctl",
		Short: "rosterctl - client for the hospital roster optimizer",
		Long: `rosterctl drives roster generation jobs on the optimizer service.

It submits and watches generation jobs, edits and finalizes the resulting
rosters, distributes them to doctors, keeps a local catalogue of saved
rosters, and analyzes roster fairness and coverage.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "Optimizer service URL (overrides config)")
	cmd.PersistentFlags().StringVar(&a.storePath, "store", "", "Saved-roster store path (overrides config)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.loadConfig()
	}

	cmd.AddCommand(newGenerateCommand(a))
	cmd.AddCommand(newStatusCommand(a))
	cmd.AddCommand(newWatchCommand(a))
	cmd.AddCommand(newCancelCommand(a))
	cmd.AddCommand(newFinalizeCommand(a))
	cmd.AddCommand(newUnfinalizeCommand(a))
	cmd.AddCommand(newDistributeCommand(a))
	cmd.AddCommand(newExportCommand(a))
	cmd.AddCommand(newShiftsCommand(a))
	cmd.AddCommand(newRostersCommand(a))
	cmd.AddCommand(newBackupCommand(a))
	cmd.AddCommand(newAnalyzeCommand(a))

	return cmd
}

// run executes one CLI invocation and releases what it opened.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	a := &app{in: in, out: out, errOut: errOut}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}
