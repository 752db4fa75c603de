// Package lifecycle owns transient dataset identity and the dataset
// create/load/destroy cycle. Datasets are namespaced by a per-process
// creation timestamp embedded in their own name, which is both the isolation
// mechanism between concurrent test runs and the garbage-collection signal
// for abandoned runs.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
	"github.com/quarterlake/bqfixture/pkg/fixture"
	"github.com/quarterlake/bqfixture/pkg/loader"
	"github.com/quarterlake/bqfixture/pkg/metrics"
	"github.com/quarterlake/bqfixture/pkg/retry"
)

// TransientMarker separates the normalized database name from the embedded
// creation timestamp in a transient dataset id.
const TransientMarker = "__transient_"

const (
	DefaultVersionPrefix = "v1"
	// DefaultStaleAfter is the staleness window: a transient dataset older
	// than this is presumed abandoned by a previous run and safe to delete.
	DefaultStaleAfter = 2 * time.Hour
	// DefaultDatasetAttempts is one initial attempt plus two whole-dataset
	// retries.
	DefaultDatasetAttempts = 3
)

type Config struct {
	Logger        *slog.Logger
	Clock         clockwork.Clock
	Client        bq.Client
	Loader        *loader.Loader
	VersionPrefix string
	StaleAfter    time.Duration
	Stamp         *Stamp

	// Backoff between whole-dataset attempts. MaxAttempts is taken from
	// DatasetAttempts, not from this config.
	DatasetAttempts  int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("bigquery client is required")
	}
	if cfg.Loader == nil {
		return errors.New("loader is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.VersionPrefix == "" {
		cfg.VersionPrefix = DefaultVersionPrefix
	}
	if !fixture.ValidDatasetName(cfg.VersionPrefix) {
		return fmt.Errorf("version prefix %q is not a valid dataset name fragment", cfg.VersionPrefix)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Stamp == nil {
		cfg.Stamp = NewStamp(cfg.Clock, cfg.StaleAfter)
	}
	if cfg.DatasetAttempts <= 0 {
		cfg.DatasetAttempts = DefaultDatasetAttempts
	}
	if cfg.RetryBaseBackoff <= 0 {
		cfg.RetryBaseBackoff = retry.DefaultConfig().BaseBackoff
	}
	if cfg.RetryMaxBackoff <= 0 {
		cfg.RetryMaxBackoff = retry.DefaultConfig().MaxBackoff
	}
	return nil
}

type Manager struct {
	log *slog.Logger
	cfg Config
}

func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// DatasetID derives the transient dataset id for a logical database name:
// the version prefix, the normalized name, and the process-run timestamp.
func (m *Manager) DatasetID(databaseName string) (string, error) {
	id := fmt.Sprintf("%s_%s%s%d",
		m.cfg.VersionPrefix, fixture.FormatIdentifier(databaseName), TransientMarker, m.cfg.Stamp.Millis())
	if !fixture.ValidDatasetName(id) {
		return "", &fixture.InvalidIdentifierError{Name: id}
	}
	return id, nil
}

// IsStale reports whether a dataset id embeds a creation timestamp older
// than the staleness window. Ids without the transient marker are never
// stale by this mechanism.
func (m *Manager) IsStale(datasetID string, now time.Time) bool {
	idx := strings.LastIndex(datasetID, TransientMarker)
	if idx < 0 {
		return false
	}
	millis, err := strconv.ParseInt(datasetID[idx+len(TransientMarker):], 10, 64)
	if err != nil {
		return false
	}
	return now.UnixMilli()-millis > m.cfg.StaleAfter.Milliseconds()
}

// CreateDatabase provisions a transient dataset and loads every table
// definition into it. Stale datasets left behind by previous runs are swept
// first. The create-then-load-all-tables sequence retries from a destroyed
// and recreated dataset on failure, so a retry never resumes partial state.
// Returns the dataset id the database was provisioned under.
func (m *Manager) CreateDatabase(ctx context.Context, databaseName string, tables []fixture.Table) (string, error) {
	datasetID, err := m.DatasetID(databaseName)
	if err != nil {
		return "", err
	}

	m.SweepStale(ctx)

	reset := func() error {
		m.log.Info("destroying dataset before retry", "dataset", datasetID)
		return m.cfg.Client.DeleteDataset(ctx, datasetID)
	}

	attempt := func() error {
		if err := m.cfg.Client.CreateDataset(ctx, datasetID); err != nil {
			return err
		}
		for _, table := range tables {
			if err := m.cfg.Loader.LoadTable(ctx, datasetID, table); err != nil {
				return err
			}
		}
		return nil
	}

	err = retry.DoWithReset(ctx, retry.Config{
		MaxAttempts: m.cfg.DatasetAttempts,
		BaseBackoff: m.cfg.RetryBaseBackoff,
		MaxBackoff:  m.cfg.RetryMaxBackoff,
		Clock:       m.cfg.Clock,
	}, reset, attempt)
	if err != nil {
		return "", fmt.Errorf("failed to create database %s as %s: %w", databaseName, datasetID, err)
	}

	m.log.Info("database created", "database", databaseName, "dataset", datasetID, "tables", len(tables))
	return datasetID, nil
}

// DestroyDatabase deletes the dataset backing a logical database name,
// cascading to all contained tables.
func (m *Manager) DestroyDatabase(ctx context.Context, databaseName string) error {
	datasetID, err := m.DatasetID(databaseName)
	if err != nil {
		return err
	}
	if err := m.cfg.Client.DeleteDataset(ctx, datasetID); err != nil {
		return fmt.Errorf("failed to destroy database %s: %w", databaseName, err)
	}
	m.log.Info("database destroyed", "database", databaseName, "dataset", datasetID)
	return nil
}

// ListAll returns every dataset id visible in the target project.
func (m *Manager) ListAll(ctx context.Context) ([]string, error) {
	return m.cfg.Client.Datasets(ctx)
}

// SweepStale garbage-collects transient datasets abandoned by previous runs.
// The sweep guards an optimization, not correctness: every failure is logged
// and swallowed so it can never block the current run's own dataset
// creation. Returns the number of datasets destroyed.
func (m *Manager) SweepStale(ctx context.Context) int {
	ids, err := m.ListAll(ctx)
	if err != nil {
		m.log.Warn("failed to list datasets for stale sweep", "error", err)
		return 0
	}
	now := m.cfg.Clock.Now()
	swept := 0
	for _, id := range ids {
		if !m.IsStale(id, now) {
			continue
		}
		if err := m.cfg.Client.DeleteDataset(ctx, id); err != nil {
			metrics.StaleDatasetsSweptTotal.WithLabelValues("failure").Inc()
			m.log.Warn("failed to delete stale dataset", "dataset", id, "error", err)
			continue
		}
		metrics.StaleDatasetsSweptTotal.WithLabelValues("success").Inc()
		m.log.Info("deleted stale dataset", "dataset", id)
		swept++
	}
	return swept
}
