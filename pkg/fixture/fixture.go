// Package fixture holds the warehouse-independent description of a test
// table: its fields, its rows, and the rules for turning both into something
// BigQuery will accept.
package fixture

import (
	"regexp"
	"strings"
)

// IDColumn is the synthetic leading column injected into every table. Insert
// requests are deduplicated by client-supplied row key, so every row needs a
// stable unique identity even when the fixture itself has no key.
const IDColumn = "id"

// Field describes a single column of a fixture table. Repeated marks the
// column as array-valued ("collection of X"). Fields is populated only for
// record types.
type Field struct {
	Name     string
	Type     FieldType
	Repeated bool
	Fields   []Field
}

// Table is a declarative table definition: ordered fields plus row data.
// Rows are ordered sequences of values matching the field order.
type Table struct {
	Name   string
	Fields []Field
	Rows   [][]any
}

var nonIdentifierChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// FormatIdentifier normalizes a logical name to the warehouse's allowed
// character set by replacing every run of non-alphanumeric characters with a
// single underscore.
func FormatIdentifier(name string) string {
	return nonIdentifierChars.ReplaceAllString(name, "_")
}

// columnName matches BigQuery's column identifier grammar: letters, digits,
// spaces and underscores, starting with a letter or underscore, at most 128
// characters.
var columnName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ ]{0,127}$`)

// ValidColumnName reports whether name satisfies the column identifier
// grammar.
func ValidColumnName(name string) bool {
	return columnName.MatchString(name)
}

// datasetName matches the character set of BigQuery's dataset identifier
// grammar. The 1024-character length cap is checked separately because the
// regexp engine rejects counted repetitions above 1000.
var datasetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// maxDatasetNameLen caps dataset and table identifiers.
const maxDatasetNameLen = 1024

// ValidDatasetName reports whether name satisfies the dataset identifier
// grammar.
func ValidDatasetName(name string) bool {
	return len(name) <= maxDatasetNameLen && datasetName.MatchString(name)
}

// ValidTableName reports whether name satisfies the table identifier
// grammar, which shares the dataset character set and length cap.
func ValidTableName(name string) bool {
	return ValidDatasetName(name)
}

func (f Field) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(" ")
	if f.Repeated {
		b.WriteString("repeated ")
	}
	b.WriteString(string(f.Type))
	return b.String()
}
