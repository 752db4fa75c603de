// Package bigquery wraps the BigQuery SDK behind the small surface the
// fixture harness needs: dataset and table lifecycle, streaming inserts with
// per-row errors, and row-count queries.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Row is a single prepared insert row. InsertID is the client-assigned key
// BigQuery uses for at-most-once semantics within an insert call.
type Row struct {
	InsertID string
	Values   map[string]bigquery.Value
}

// Save implements bigquery.ValueSaver.
func (r *Row) Save() (map[string]bigquery.Value, string, error) {
	return r.Values, r.InsertID, nil
}

// Client represents a BigQuery connection scoped to one project.
type Client interface {
	CreateDataset(ctx context.Context, datasetID string) error
	// DeleteDataset removes a dataset and everything it contains. Deleting a
	// dataset that does not exist is not an error.
	DeleteDataset(ctx context.Context, datasetID string) error
	Datasets(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error
	// DeleteTable removes a table. Deleting a table that does not exist is
	// not an error.
	DeleteTable(ctx context.Context, datasetID, tableID string) error
	Tables(ctx context.Context, datasetID string) ([]string, error)
	// InsertRows streams rows into a table in one insert call. Per-row
	// rejections surface as *InsertError.
	InsertRows(ctx context.Context, datasetID, tableID string, rows []*Row) error
	CountRows(ctx context.Context, datasetID, tableID string) (int64, error)
	Close() error
}

type client struct {
	bq      *bigquery.Client
	project string
	log     *slog.Logger
}

// NewClient creates a new BigQuery client for the given project.
func NewClient(ctx context.Context, log *slog.Logger, projectID string, opts ...option.ClientOption) (Client, error) {
	bq, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open BigQuery client: %w", err)
	}

	log.Info("BigQuery client initialized", "project", projectID)

	return &client{
		bq:      bq,
		project: projectID,
		log:     log,
	}, nil
}

func (c *client) CreateDataset(ctx context.Context, datasetID string) error {
	if err := c.bq.Dataset(datasetID).Create(ctx, &bigquery.DatasetMetadata{}); err != nil {
		return fmt.Errorf("failed to create dataset %s: %w", datasetID, err)
	}
	return nil
}

func (c *client) DeleteDataset(ctx context.Context, datasetID string) error {
	if err := c.bq.Dataset(datasetID).DeleteWithContents(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete dataset %s: %w", datasetID, err)
	}
	return nil
}

func (c *client) Datasets(ctx context.Context) ([]string, error) {
	var ids []string
	it := c.bq.Datasets(ctx)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list datasets: %w", err)
		}
		ids = append(ids, ds.DatasetID)
	}
	return ids, nil
}

func (c *client) CreateTable(ctx context.Context, datasetID, tableID string, schema bigquery.Schema) error {
	tab := c.bq.Dataset(datasetID).Table(tableID)
	if err := tab.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", datasetID, tableID, err)
	}
	return nil
}

func (c *client) DeleteTable(ctx context.Context, datasetID, tableID string) error {
	if err := c.bq.Dataset(datasetID).Table(tableID).Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete table %s.%s: %w", datasetID, tableID, err)
	}
	return nil
}

func (c *client) Tables(ctx context.Context, datasetID string) ([]string, error) {
	var ids []string
	it := c.bq.Dataset(datasetID).Tables(ctx)
	for {
		tab, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list tables in %s: %w", datasetID, err)
		}
		ids = append(ids, tab.TableID)
	}
	return ids, nil
}

func (c *client) InsertRows(ctx context.Context, datasetID, tableID string, rows []*Row) error {
	savers := make([]bigquery.ValueSaver, len(rows))
	for i, r := range rows {
		savers[i] = r
	}
	err := c.bq.Dataset(datasetID).Table(tableID).Inserter().Put(ctx, savers)
	if err == nil {
		return nil
	}
	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		return newInsertError(datasetID, tableID, rows, multi)
	}
	return fmt.Errorf("failed to insert %d rows into %s.%s: %w", len(rows), datasetID, tableID, err)
}

func (c *client) CountRows(ctx context.Context, datasetID, tableID string) (int64, error) {
	q := c.bq.Query(fmt.Sprintf("SELECT count(*) FROM `%s.%s.%s`", c.project, datasetID, tableID))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s.%s: %w", datasetID, tableID, err)
	}
	var row []bigquery.Value
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("failed to read row count for %s.%s: %w", datasetID, tableID, err)
	}
	count, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected row count type %T for %s.%s", row[0], datasetID, tableID)
	}
	return count, nil
}

func (c *client) Close() error {
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
