// Package loader drives the load-and-verify pipeline for one fixture table:
// create the table, stream the rows in bounded batches, then poll the row
// count until the warehouse reports everything we sent. The insert path is
// known to fail silently on occasion, so the whole sequence retries from a
// clean slate a bounded number of times.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jonboulle/clockwork"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
	"github.com/quarterlake/bqfixture/pkg/fixture"
	"github.com/quarterlake/bqfixture/pkg/metrics"
	"github.com/quarterlake/bqfixture/pkg/retry"
)

const (
	DefaultPollInterval  = time.Second
	DefaultPollTimeout   = 120 * time.Second
	DefaultTableAttempts = 5
)

// LoadTimeoutError reports that a table's row count never converged on the
// expected value within the polling ceiling.
type LoadTimeoutError struct {
	Dataset  string
	Table    string
	Expected int64
	Actual   int64
	Waited   time.Duration
}

func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("table %s.%s: expected %d rows, saw %d after %s",
		e.Dataset, e.Table, e.Expected, e.Actual, e.Waited)
}

type Config struct {
	Logger        *slog.Logger
	Clock         clockwork.Clock
	Client        bq.Client
	MaxBatchSize  int
	PollInterval  time.Duration
	PollTimeout   time.Duration
	TableAttempts int

	// Backoff between table-load attempts. MaxAttempts is taken from
	// TableAttempts, not from this config.
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
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.TableAttempts <= 0 {
		cfg.TableAttempts = DefaultTableAttempts
	}
	if cfg.RetryBaseBackoff <= 0 {
		cfg.RetryBaseBackoff = retry.DefaultConfig().BaseBackoff
	}
	if cfg.RetryMaxBackoff <= 0 {
		cfg.RetryMaxBackoff = retry.DefaultConfig().MaxBackoff
	}
	return nil
}

type Loader struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loader{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// LoadTable provisions a table in the given dataset and loads its fixture
// rows, verifying the load by polling the row count. Schema and identifier
// failures surface immediately; anything else retries up to TableAttempts
// times, deleting the table between attempts so every retry starts clean.
// Prepared rows are computed once: ids derive from row position, so retried
// inserts are idempotent.
func (l *Loader) LoadTable(ctx context.Context, datasetID string, table fixture.Table) error {
	schema, err := fixture.Schema(table)
	if err != nil {
		return retry.Permanent(err)
	}
	prepared, err := fixture.PrepareRows(table)
	if err != nil {
		return retry.Permanent(err)
	}
	batches := BuildBatches(prepared, l.cfg.MaxBatchSize)
	expected := int64(len(prepared))

	reset := func() error {
		metrics.TableLoadRetriesTotal.Inc()
		// Best-effort: a failed delete must not block the retry itself.
		if err := l.cfg.Client.DeleteTable(ctx, datasetID, table.Name); err != nil {
			l.log.Warn("failed to delete table before retry", "dataset", datasetID, "table", table.Name, "error", err)
		}
		return nil
	}

	attempt := func() error {
		if err := l.createTable(ctx, datasetID, table.Name, schema); err != nil {
			return err
		}
		if err := l.insertBatches(ctx, datasetID, table.Name, batches); err != nil {
			return err
		}
		return l.waitForRows(ctx, datasetID, table.Name, expected)
	}

	err = retry.DoWithReset(ctx, retry.Config{
		MaxAttempts: l.cfg.TableAttempts,
		BaseBackoff: l.cfg.RetryBaseBackoff,
		MaxBackoff:  l.cfg.RetryMaxBackoff,
		Clock:       l.cfg.Clock,
	}, reset, attempt)
	if err != nil {
		metrics.TableLoadsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to load table %s.%s: %w", datasetID, table.Name, err)
	}

	metrics.TableLoadsTotal.WithLabelValues("success").Inc()
	l.log.Debug("loaded table", "dataset", datasetID, "table", table.Name, "rows", expected)
	return nil
}

// createTable deletes any pre-existing table of the same name, creates a
// fresh one and verifies it is listed in the dataset. A stale table from a
// prior aborted run must not block re-creation, so the delete is best-effort.
func (l *Loader) createTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	if err := l.cfg.Client.DeleteTable(ctx, datasetID, tableID); err != nil {
		l.log.Warn("failed to delete pre-existing table", "dataset", datasetID, "table", tableID, "error", err)
	}
	if err := l.cfg.Client.CreateTable(ctx, datasetID, tableID, schema); err != nil {
		return err
	}
	tables, err := l.cfg.Client.Tables(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("failed to verify table creation: %w", err)
	}
	if !slices.Contains(tables, tableID) {
		return fmt.Errorf("table %s.%s not listed after creation", datasetID, tableID)
	}
	return nil
}

func (l *Loader) insertBatches(ctx context.Context, datasetID, tableID string, batches [][]*bq.Row) error {
	for i, batch := range batches {
		if err := l.cfg.Client.InsertRows(ctx, datasetID, tableID, batch); err != nil {
			return fmt.Errorf("failed to insert batch %d/%d: %w", i+1, len(batches), err)
		}
		metrics.RowsInsertedTotal.Add(float64(len(batch)))
	}
	return nil
}

// waitForRows polls the table's row count once per PollInterval until it
// matches expected or PollTimeout elapses. Transient count-query errors are
// treated the same as a short count and polled through.
func (l *Loader) waitForRows(ctx context.Context, datasetID, tableID string, expected int64) error {
	started := l.cfg.Clock.Now()
	deadline := started.Add(l.cfg.PollTimeout)
	var actual int64
	for {
		count, err := l.cfg.Client.CountRows(ctx, datasetID, tableID)
		if err != nil {
			l.log.Debug("row count query failed", "dataset", datasetID, "table", tableID, "error", err)
		} else {
			actual = count
			if count == expected {
				metrics.LoadPollDuration.Observe(l.cfg.Clock.Since(started).Seconds())
				return nil
			}
		}
		if !l.cfg.Clock.Now().Before(deadline) {
			return &LoadTimeoutError{
				Dataset:  datasetID,
				Table:    tableID,
				Expected: expected,
				Actual:   actual,
				Waited:   l.cfg.Clock.Since(started),
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.cfg.Clock.After(l.cfg.PollInterval):
		}
	}
}
