package bigquery

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

// RowError describes one rejected row within an insert call.
type RowError struct {
	InsertID string
	Values   map[string]bigquery.Value
	Errors   []string
}

// InsertError reports that the warehouse rejected one or more rows in a
// batch. The whole table load aborts on it; there is nothing to poll for.
type InsertError struct {
	Dataset string
	Table   string
	Rows    []RowError
}

func (e *InsertError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "insert into %s.%s rejected %d row(s)", e.Dataset, e.Table, len(e.Rows))
	for _, r := range e.Rows {
		fmt.Fprintf(&b, "; row %s: %s", r.InsertID, strings.Join(r.Errors, ", "))
	}
	return b.String()
}

func newInsertError(datasetID, tableID string, rows []*Row, multi bigquery.PutMultiError) *InsertError {
	ie := &InsertError{Dataset: datasetID, Table: tableID}
	for _, rowErr := range multi {
		re := RowError{InsertID: rowErr.InsertID}
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(rows) {
			re.Values = rows[rowErr.RowIndex].Values
		}
		for _, err := range rowErr.Errors {
			re.Errors = append(re.Errors, err.Error())
		}
		ie.Rows = append(ie.Rows, re)
	}
	return ie
}
