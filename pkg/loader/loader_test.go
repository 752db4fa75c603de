package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
	bqtesting "github.com/quarterlake/bqfixture/pkg/bigquery/testing"
	"github.com/quarterlake/bqfixture/pkg/fixture"
)

func testLoader(t *testing.T, client bq.Client, mutate func(*Config)) *Loader {
	t.Helper()
	cfg := Config{
		Logger:           bqtesting.NewLogger(),
		Client:           client,
		PollInterval:     time.Millisecond,
		PollTimeout:      100 * time.Millisecond,
		RetryBaseBackoff: time.Millisecond,
		RetryMaxBackoff:  5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func peopleTable() fixture.Table {
	return fixture.Table{
		Name:   "people",
		Fields: []fixture.Field{{Name: "name", Type: fixture.TypeText}},
		Rows:   [][]any{{"a"}, {"b"}},
	}
}

func TestBQFixture_Loader_New(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()
		l, err := New(Config{Client: bqtesting.NewFakeClient()})
		require.Error(t, err)
		require.Nil(t, l)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("missing client", func(t *testing.T) {
		t.Parallel()
		l, err := New(Config{Logger: bqtesting.NewLogger()})
		require.Error(t, err)
		require.Nil(t, l)
		require.Contains(t, err.Error(), "client is required")
	})

	t.Run("defaults are filled", func(t *testing.T) {
		t.Parallel()
		l, err := New(Config{Logger: bqtesting.NewLogger(), Client: bqtesting.NewFakeClient()})
		require.NoError(t, err)
		require.Equal(t, DefaultMaxBatchSize, l.cfg.MaxBatchSize)
		require.Equal(t, DefaultPollInterval, l.cfg.PollInterval)
		require.Equal(t, DefaultPollTimeout, l.cfg.PollTimeout)
		require.Equal(t, DefaultTableAttempts, l.cfg.TableAttempts)
	})
}

func TestBQFixture_Loader_LoadTable_HappyPath(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	l := testLoader(t, fake, nil)
	require.NoError(t, l.LoadTable(context.Background(), "ds", peopleTable()))

	schema := fake.Schema("ds", "people")
	require.Len(t, schema, 2)
	require.Equal(t, fixture.IDColumn, schema[0].Name)
	require.Equal(t, "name", schema[1].Name)

	rows := fake.Rows("ds", "people")
	require.Len(t, rows, 2)
	require.Equal(t, "1", rows[0].InsertID)
	require.Equal(t, 1, rows[0].Values[fixture.IDColumn])
	require.Equal(t, "a", rows[0].Values["name"])
	require.Equal(t, "2", rows[1].InsertID)
	require.Equal(t, "b", rows[1].Values["name"])

	count, err := fake.CountRows(context.Background(), "ds", "people")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestBQFixture_Loader_LoadTable_EmptyTable(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	l := testLoader(t, fake, nil)
	require.NoError(t, l.LoadTable(context.Background(), "ds", fixture.Table{
		Name:   "empty",
		Fields: []fixture.Field{{Name: "n", Type: fixture.TypeInteger}},
	}))
	require.Empty(t, fake.Rows("ds", "empty"))
}

func TestBQFixture_Loader_LoadTable_EventualConsistency(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	fake.CountLag = 3
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	l := testLoader(t, fake, nil)
	require.NoError(t, l.LoadTable(context.Background(), "ds", peopleTable()))
}

func TestBQFixture_Loader_LoadTable_InsertErrorAbortsBeforePolling(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	fake.InsertFunc = func(datasetID, tableID string, rows []*bq.Row) error {
		return &bq.InsertError{
			Dataset: datasetID,
			Table:   tableID,
			Rows:    []bq.RowError{{InsertID: "2", Errors: []string{"no such field"}}},
		}
	}
	countCalls := 0
	fake.CountFunc = func(datasetID, tableID string) (int64, error) {
		countCalls++
		return 0, nil
	}

	l := testLoader(t, fake, func(cfg *Config) { cfg.TableAttempts = 1 })
	err := l.LoadTable(context.Background(), "ds", peopleTable())
	require.Error(t, err)

	var ie *bq.InsertError
	require.True(t, errors.As(err, &ie))
	require.Len(t, ie.Rows, 1)
	require.Equal(t, "2", ie.Rows[0].InsertID)
	require.Zero(t, countCalls, "insert errors must abort before the row-count wait")
}

func TestBQFixture_Loader_LoadTable_RetriesTransientInsertFailure(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	insertCalls := 0
	fake.InsertFunc = func(datasetID, tableID string, rows []*bq.Row) error {
		insertCalls++
		if insertCalls <= 2 {
			return fmt.Errorf("backend error")
		}
		return nil
	}

	l := testLoader(t, fake, nil)
	require.NoError(t, l.LoadTable(context.Background(), "ds", peopleTable()))
	require.Equal(t, 3, insertCalls)
	require.Len(t, fake.Rows("ds", "people"), 2)
}

func TestBQFixture_Loader_LoadTable_Timeout(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	fake.CountFunc = func(datasetID, tableID string) (int64, error) {
		return 1, nil
	}

	l := testLoader(t, fake, func(cfg *Config) {
		cfg.TableAttempts = 1
		cfg.PollTimeout = 5 * time.Millisecond
	})
	err := l.LoadTable(context.Background(), "ds", peopleTable())
	require.Error(t, err)

	var lte *LoadTimeoutError
	require.True(t, errors.As(err, &lte))
	require.Equal(t, int64(2), lte.Expected)
	require.Equal(t, int64(1), lte.Actual)
}

func TestBQFixture_Loader_LoadTable_SchemaErrorIsPermanent(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	l := testLoader(t, fake, nil)
	err := l.LoadTable(context.Background(), "ds", fixture.Table{
		Name:   "bad",
		Fields: []fixture.Field{{Name: "bad-name", Type: fixture.TypeText}},
	})
	require.Error(t, err)

	var iie *fixture.InvalidIdentifierError
	require.True(t, errors.As(err, &iie))

	// Nothing was provisioned: the failure happened before any remote call.
	tables, listErr := fake.Tables(context.Background(), "ds")
	require.NoError(t, listErr)
	require.Empty(t, tables)
}

func TestBQFixture_Loader_LoadTable_InvalidTableName(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))

	l := testLoader(t, fake, nil)
	bad := peopleTable()
	bad.Name = "bad-table.name"
	err := l.LoadTable(context.Background(), "ds", bad)
	require.Error(t, err)

	var iie *fixture.InvalidIdentifierError
	require.True(t, errors.As(err, &iie))
	require.Equal(t, "bad-table.name", iie.Name)

	// The bad name never reached the warehouse.
	tables, listErr := fake.Tables(context.Background(), "ds")
	require.NoError(t, listErr)
	require.Empty(t, tables)
}

func TestBQFixture_Loader_LoadTable_ReplacesStaleTable(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	ctx := context.Background()
	require.NoError(t, fake.CreateDataset(ctx, "ds"))

	// A previous aborted run left a half-loaded table behind.
	stale := peopleTable()
	schema, err := fixture.Schema(stale)
	require.NoError(t, err)
	require.NoError(t, fake.CreateTable(ctx, "ds", "people", schema))
	require.NoError(t, fake.InsertRows(ctx, "ds", "people", []*bq.Row{{InsertID: "9", Values: map[string]bigquery.Value{"name": "ghost"}}}))

	l := testLoader(t, fake, nil)
	require.NoError(t, l.LoadTable(ctx, "ds", stale))

	rows := fake.Rows("ds", "people")
	require.Len(t, rows, 2)
	require.Equal(t, "a", rows[0].Values["name"])
}

func TestBQFixture_Loader_LoadTable_ContextCancelled(t *testing.T) {
	t.Parallel()

	fake := bqtesting.NewFakeClient()
	require.NoError(t, fake.CreateDataset(context.Background(), "ds"))
	fake.CountFunc = func(datasetID, tableID string) (int64, error) {
		return 0, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := testLoader(t, fake, func(cfg *Config) { cfg.TableAttempts = 1 })
	err := l.LoadTable(ctx, "ds", peopleTable())
	require.ErrorIs(t, err, context.Canceled)
}
