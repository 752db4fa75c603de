package fixture

import (
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Schema builds the BigQuery schema for a table definition: a leading
// synthetic integer id column followed by the mapped fixture fields. The
// table name and all column names are validated against their identifier
// grammars before any remote call is made.
func Schema(t Table) (bigquery.Schema, error) {
	if !ValidTableName(t.Name) {
		return nil, &InvalidIdentifierError{Name: t.Name}
	}
	fields, err := fieldSchemas(t.Fields)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.Name, err)
	}
	schema := make(bigquery.Schema, 0, len(fields)+1)
	schema = append(schema, &bigquery.FieldSchema{
		Name:     IDColumn,
		Type:     bigquery.IntegerFieldType,
		Required: true,
	})
	return append(schema, fields...), nil
}

func fieldSchemas(fields []Field) ([]*bigquery.FieldSchema, error) {
	out := make([]*bigquery.FieldSchema, 0, len(fields))
	for _, f := range fields {
		if !ValidColumnName(f.Name) {
			return nil, &InvalidIdentifierError{Name: f.Name}
		}
		wt, err := ResolveType(f.Type)
		if err != nil {
			return nil, err
		}
		fs := &bigquery.FieldSchema{
			Name:     f.Name,
			Type:     wt,
			Repeated: f.Repeated,
		}
		if wt == bigquery.RecordFieldType {
			nested, err := fieldSchemas(f.Fields)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", f.Name, err)
			}
			fs.Schema = nested
		}
		out = append(out, fs)
	}
	return out, nil
}
