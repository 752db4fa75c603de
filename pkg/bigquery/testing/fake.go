// Package bqtesting provides an in-memory stand-in for the BigQuery client
// wrapper. There is no BigQuery container to run locally, so tests exercise
// the harness against this fake, with hooks to script failures and simulate
// eventual consistency.
package bqtesting

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/bigquery"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
)

type fakeTable struct {
	schema bigquery.Schema
	rows   []*bq.Row
	polls  int
}

// FakeClient is an in-memory bq.Client. The zero value is not usable; create
// one with NewFakeClient. Optional func fields are invoked instead of the
// in-memory behavior when set, mirroring the swappable-mock pattern used
// elsewhere in the tests.
type FakeClient struct {
	mu       sync.Mutex
	datasets map[string]map[string]*fakeTable

	CreateDatasetFunc func(datasetID string) error
	DeleteDatasetFunc func(datasetID string) error
	InsertFunc        func(datasetID, tableID string, rows []*bq.Row) error
	CountFunc         func(datasetID, tableID string) (int64, error)

	// CountLag makes each table's row count read as zero for the first
	// CountLag CountRows calls after creation, simulating the warehouse's
	// eventual consistency on the streaming insert path.
	CountLag int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{datasets: map[string]map[string]*fakeTable{}}
}

func (f *FakeClient) CreateDataset(ctx context.Context, datasetID string) error {
	if f.CreateDatasetFunc != nil {
		if err := f.CreateDatasetFunc(datasetID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.datasets[datasetID]; ok {
		return fmt.Errorf("dataset %s already exists", datasetID)
	}
	f.datasets[datasetID] = map[string]*fakeTable{}
	return nil
}

func (f *FakeClient) DeleteDataset(ctx context.Context, datasetID string) error {
	if f.DeleteDatasetFunc != nil {
		if err := f.DeleteDatasetFunc(datasetID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.datasets, datasetID)
	return nil
}

func (f *FakeClient) Datasets(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.datasets))
	for id := range f.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeClient) CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.datasets[datasetID]
	if !ok {
		return fmt.Errorf("dataset %s not found", datasetID)
	}
	if _, ok := ds[tableID]; ok {
		return fmt.Errorf("table %s.%s already exists", datasetID, tableID)
	}
	ds[tableID] = &fakeTable{schema: schema}
	return nil
}

func (f *FakeClient) DeleteTable(ctx context.Context, datasetID, tableID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ds, ok := f.datasets[datasetID]; ok {
		delete(ds, tableID)
	}
	return nil
}

func (f *FakeClient) Tables(ctx context.Context, datasetID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", datasetID)
	}
	ids := make([]string, 0, len(ds))
	for id := range ds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeClient) InsertRows(ctx context.Context, datasetID, tableID string, rows []*bq.Row) error {
	if f.InsertFunc != nil {
		if err := f.InsertFunc(datasetID, tableID, rows); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tab, err := f.table(datasetID, tableID)
	if err != nil {
		return err
	}
	// Deduplicate by insert id, the way the real insert path does.
	seen := make(map[string]bool, len(tab.rows))
	for _, r := range tab.rows {
		seen[r.InsertID] = true
	}
	for _, r := range rows {
		if seen[r.InsertID] {
			continue
		}
		seen[r.InsertID] = true
		tab.rows = append(tab.rows, r)
	}
	return nil
}

func (f *FakeClient) CountRows(ctx context.Context, datasetID, tableID string) (int64, error) {
	if f.CountFunc != nil {
		return f.CountFunc(datasetID, tableID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tab, err := f.table(datasetID, tableID)
	if err != nil {
		return 0, err
	}
	tab.polls++
	if tab.polls <= f.CountLag {
		return 0, nil
	}
	return int64(len(tab.rows)), nil
}

func (f *FakeClient) Close() error {
	return nil
}

func (f *FakeClient) table(datasetID, tableID string) (*fakeTable, error) {
	ds, ok := f.datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", datasetID)
	}
	tab, ok := ds[tableID]
	if !ok {
		return nil, fmt.Errorf("table %s.%s not found", datasetID, tableID)
	}
	return tab, nil
}

// Rows returns the rows currently stored in a table, in insert order.
func (f *FakeClient) Rows(datasetID, tableID string) []*bq.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	tab, err := f.table(datasetID, tableID)
	if err != nil {
		return nil
	}
	return append([]*bq.Row(nil), tab.rows...)
}

// Schema returns the schema a table was created with, or nil.
func (f *FakeClient) Schema(datasetID, tableID string) bigquery.Schema {
	f.mu.Lock()
	defer f.mu.Unlock()
	tab, err := f.table(datasetID, tableID)
	if err != nil {
		return nil
	}
	return tab.schema
}

// HasDataset reports whether a dataset currently exists.
func (f *FakeClient) HasDataset(datasetID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.datasets[datasetID]
	return ok
}
