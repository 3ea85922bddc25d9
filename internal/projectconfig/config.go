// Package projectconfig provides the ProjectConfig struct and loader for
// .rosterctl.yaml configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peninsula-health/rosterctl/internal/analytics"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by Load.
const FileName = ".rosterctl.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultServerURL     = "http://localhost:8000"
	DefaultServerTimeout = 30 * time.Second

	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 120

	DefaultStoreDriver   = "sqlite"
	DefaultStoreDir      = ".rosterctl"
	DefaultStoreCapacity = 50

	DefaultBackupContainer = "roster-backups"
	DefaultBackupBlob      = "catalog.json.gz"

	DefaultFTESource = "derived"
)

// Environment variables that override file values.
const (
	EnvServerURL        = "ROSTERCTL_SERVER_URL"
	EnvToken            = "ROSTERCTL_TOKEN"
	EnvStorePath        = "ROSTERCTL_STORE_PATH"
	EnvAzureConnection  = "AZURE_STORAGE_CONNECTION_STRING"
	EnvBackupAccountURL = "ROSTERCTL_BACKUP_ACCOUNT_URL"
)

// ServerConfig locates the roster generation service.
type ServerConfig struct {
	URL     string        `yaml:"url,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// PollingConfig controls how jobs are watched.
type PollingConfig struct {
	Interval    time.Duration `yaml:"interval,omitempty"`
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
}

// StoreConfig selects the saved-roster backend.
type StoreConfig struct {
	// Driver is "sqlite" or "file".
	Driver   string `yaml:"driver,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Capacity int    `yaml:"capacity,omitempty"`
}

// AnalyticsConfig overrides the analytics heuristics. Empty fields keep
// the built-in rules.
type AnalyticsConfig struct {
	FTESource       string   `yaml:"fte_source,omitempty"`
	LeadershipRoles []string `yaml:"leadership_roles,omitempty"`
	RemoteSites     []string `yaml:"remote_sites,omitempty"`
	EveningMarkers  []string `yaml:"evening_markers,omitempty"`
	ShiftHours      float64  `yaml:"shift_hours,omitempty"`
	FullTimeHours   float64  `yaml:"full_time_hours,omitempty"`
	FairnessPenalty float64  `yaml:"fairness_penalty,omitempty"`
}

// BackupConfig points at the Azure Blob Storage container for backups.
type BackupConfig struct {
	AccountURL       string `yaml:"account_url,omitempty"`
	ConnectionString string `yaml:"connection_string,omitempty"`
	Container        string `yaml:"container,omitempty"`
	Blob             string `yaml:"blob,omitempty"`
}

// DistributionConfig holds defaults for finalize and distribute.
type DistributionConfig struct {
	Actor     string `yaml:"actor,omitempty"`
	TestEmail string `yaml:"test_email,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .rosterctl.yaml.
type ProjectConfig struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	Polling      PollingConfig      `yaml:"polling,omitempty"`
	Store        StoreConfig        `yaml:"store,omitempty"`
	Analytics    AnalyticsConfig    `yaml:"analytics,omitempty"`
	Backup       BackupConfig       `yaml:"backup,omitempty"`
	Distribution DistributionConfig `yaml:"distribution,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			URL:     DefaultServerURL,
			Timeout: DefaultServerTimeout,
		},
		Polling: PollingConfig{
			Interval:    DefaultPollInterval,
			MaxAttempts: DefaultPollMaxAttempts,
		},
		Store: StoreConfig{
			Driver:   DefaultStoreDriver,
			Capacity: DefaultStoreCapacity,
		},
		Analytics: AnalyticsConfig{
			FTESource: DefaultFTESource,
		},
		Backup: BackupConfig{
			Container: DefaultBackupContainer,
			Blob:      DefaultBackupBlob,
		},
	}
}

// Load finds .rosterctl.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	return cfg, nil
}

// findConfigFile walks up from dir looking for .rosterctl.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors instead of swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	if src.Server.URL != "" {
		dst.Server.URL = src.Server.URL
	}
	if src.Server.Token != "" {
		dst.Server.Token = src.Server.Token
	}
	if src.Server.Timeout != 0 {
		dst.Server.Timeout = src.Server.Timeout
	}

	// Polling
	if src.Polling.Interval != 0 {
		dst.Polling.Interval = src.Polling.Interval
	}
	if src.Polling.MaxAttempts != 0 {
		dst.Polling.MaxAttempts = src.Polling.MaxAttempts
	}

	// Store
	if src.Store.Driver != "" {
		dst.Store.Driver = src.Store.Driver
	}
	if src.Store.Path != "" {
		dst.Store.Path = src.Store.Path
	}
	if src.Store.Capacity != 0 {
		dst.Store.Capacity = src.Store.Capacity
	}

	// Analytics
	a, sa := &dst.Analytics, src.Analytics
	if sa.FTESource != "" {
		a.FTESource = sa.FTESource
	}
	if len(sa.LeadershipRoles) > 0 {
		a.LeadershipRoles = sa.LeadershipRoles
	}
	if len(sa.RemoteSites) > 0 {
		a.RemoteSites = sa.RemoteSites
	}
	if len(sa.EveningMarkers) > 0 {
		a.EveningMarkers = sa.EveningMarkers
	}
	if sa.ShiftHours != 0 {
		a.ShiftHours = sa.ShiftHours
	}
	if sa.FullTimeHours != 0 {
		a.FullTimeHours = sa.FullTimeHours
	}
	if sa.FairnessPenalty != 0 {
		a.FairnessPenalty = sa.FairnessPenalty
	}

	// Backup
	if src.Backup.AccountURL != "" {
		dst.Backup.AccountURL = src.Backup.AccountURL
	}
	if src.Backup.ConnectionString != "" {
		dst.Backup.ConnectionString = src.Backup.ConnectionString
	}
	if src.Backup.Container != "" {
		dst.Backup.Container = src.Backup.Container
	}
	if src.Backup.Blob != "" {
		dst.Backup.Blob = src.Backup.Blob
	}

	// Distribution
	if src.Distribution.Actor != "" {
		dst.Distribution.Actor = src.Distribution.Actor
	}
	if src.Distribution.TestEmail != "" {
		dst.Distribution.TestEmail = src.Distribution.TestEmail
	}
}

// ApplyEnv overlays environment overrides. getenv is usually os.Getenv.
func (c *ProjectConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvServerURL); v != "" {
		c.Server.URL = v
	}
	if v := getenv(EnvToken); v != "" {
		c.Server.Token = v
	}
	if v := getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvAzureConnection); v != "" {
		c.Backup.ConnectionString = v
	}
	if v := getenv(EnvBackupAccountURL); v != "" {
		c.Backup.AccountURL = v
	}
}

// Validate rejects values no component can work with.
func (c *ProjectConfig) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "file":
	default:
		return fmt.Errorf("store.driver %q must be sqlite or file", c.Store.Driver)
	}
	switch c.Analytics.FTESource {
	case string(analytics.FTEDerived), string(analytics.FTESummary):
	default:
		return fmt.Errorf("analytics.fte_source %q must be %s or %s", c.Analytics.FTESource, analytics.FTEDerived, analytics.FTESummary)
	}
	if c.Store.Capacity < 0 || c.Polling.MaxAttempts < 0 || c.Polling.Interval < 0 {
		return errors.New("store.capacity, polling.max_attempts and polling.interval must not be negative")
	}
	return nil
}

// StorePath returns the configured store path, or a default under the
// user's home directory matching the driver.
func (c *ProjectConfig) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	name := "rosters.db"
	if c.Store.Driver == "file" {
		name = "rosters.json"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DefaultStoreDir, name)
	}
	return filepath.Join(home, DefaultStoreDir, name)
}

// Rules returns the analytics rules with configured overrides applied.
func (a AnalyticsConfig) Rules() analytics.Rules {
	r := analytics.DefaultRules()
	if len(a.LeadershipRoles) > 0 {
		r.LeadershipRoles = trimAll(a.LeadershipRoles)
	}
	if len(a.RemoteSites) > 0 {
		r.RemoteSites = trimAll(a.RemoteSites)
	}
	if len(a.EveningMarkers) > 0 {
		r.EveningMarkers = trimAll(a.EveningMarkers)
	}
	if a.ShiftHours > 0 {
		r.ShiftHours = a.ShiftHours
	}
	if a.FullTimeHours > 0 {
		r.FullTimeHours = a.FullTimeHours
	}
	if a.FairnessPenalty > 0 {
		r.FairnessPenalty = a.FairnessPenalty
	}
	return r
}

// Engine builds an analytics engine from the configured rules and FTE source.
func (a AnalyticsConfig) Engine() *analytics.Engine {
	src := analytics.FTESource(a.FTESource)
	if src == "" {
		src = analytics.FTEDerived
	}
	return analytics.NewEngine(a.Rules(), analytics.WithFTESource(src))
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
