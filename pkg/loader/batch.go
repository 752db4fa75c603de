package loader

import (
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/quarterlake/bqfixture/pkg/bigquery"
	"github.com/quarterlake/bqfixture/pkg/fixture"
)

// DefaultMaxBatchSize is BigQuery's hard per-call row limit for streaming
// inserts.
const DefaultMaxBatchSize = 10000

// BuildBatches packages prepared rows into insert requests of at most
// maxBatchSize rows each, preserving row order. Every row carries its
// synthetic id as the client-assigned insert key; callers must guarantee id
// uniqueness within a table.
func BuildBatches(prepared []map[string]bigquery.Value, maxBatchSize int) [][]*bq.Row {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	rows := make([]*bq.Row, len(prepared))
	for i, values := range prepared {
		rows[i] = &bq.Row{
			InsertID: fmt.Sprint(values[fixture.IDColumn]),
			Values:   values,
		}
	}
	batches := make([][]*bq.Row, 0, (len(rows)+maxBatchSize-1)/maxBatchSize)
	for start := 0; start < len(rows); start += maxBatchSize {
		end := min(start+maxBatchSize, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}
