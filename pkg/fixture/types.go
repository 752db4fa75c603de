package fixture

import (
	"cloud.google.com/go/bigquery"
)

// FieldType is an abstract fixture column type. The closed set below covers
// what test fixtures actually declare; anything more exotic resolves through
// the declared-parent hierarchy or fails.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeVarchar     FieldType = "varchar"
	TypeChar        FieldType = "char"
	TypeUUID        FieldType = "uuid"
	TypeJSON        FieldType = "json"
	TypeInteger     FieldType = "integer"
	TypeSmallInt    FieldType = "smallint"
	TypeBigInt      FieldType = "bigint"
	TypeSerial      FieldType = "serial"
	TypeBigSerial   FieldType = "bigserial"
	TypeBoolean     FieldType = "boolean"
	TypeFloat       FieldType = "float"
	TypeDouble      FieldType = "double"
	TypeDecimal     FieldType = "decimal"
	TypeNumeric     FieldType = "numeric"
	TypeDate        FieldType = "date"
	TypeDateTime    FieldType = "datetime"
	TypeTimestampTZ FieldType = "timestamptz"
	TypeTime        FieldType = "time"
	TypeTimeTZ      FieldType = "timetz"
	TypeRecord      FieldType = "record"
)

// warehouseTypes is the fixed mapping from abstract types to BigQuery column
// types. Types absent here resolve through their declared parents.
var warehouseTypes = map[FieldType]bigquery.FieldType{
	TypeInteger:     bigquery.IntegerFieldType,
	TypeBoolean:     bigquery.BooleanFieldType,
	TypeDate:        bigquery.DateFieldType,
	TypeDateTime:    bigquery.DateTimeFieldType,
	TypeTimestampTZ: bigquery.TimestampFieldType,
	TypeDecimal:     bigquery.BigNumericFieldType,
	TypeRecord:      bigquery.RecordFieldType,
	TypeFloat:       bigquery.FloatFieldType,
	TypeText:        bigquery.StringFieldType,
	TypeTime:        bigquery.TimeFieldType,
}

// parents declares the type hierarchy walked when a type has no direct
// warehouse mapping. Parent order matters: resolution takes the first parent
// that resolves. No type today has more than one parent, so the tie-break is
// implementation-defined rather than load-bearing.
var parents = map[FieldType][]FieldType{
	TypeVarchar:   {TypeText},
	TypeChar:      {TypeText},
	TypeUUID:      {TypeText},
	TypeJSON:      {TypeText},
	TypeSmallInt:  {TypeInteger},
	TypeBigInt:    {TypeInteger},
	TypeSerial:    {TypeInteger},
	TypeBigSerial: {TypeBigInt},
	TypeDouble:    {TypeFloat},
	TypeNumeric:   {TypeDecimal},
	TypeTimeTZ:    {TypeTime},
}

// ResolveType maps an abstract fixture type to its BigQuery column type. If
// the type has no direct mapping its declared parents are tried recursively,
// nearest ancestor first. Returns *UnsupportedTypeError when nothing in the
// ancestry resolves.
func ResolveType(t FieldType) (bigquery.FieldType, error) {
	if wt, ok := warehouseTypes[t]; ok {
		return wt, nil
	}
	for _, parent := range parents[t] {
		if wt, err := ResolveType(parent); err == nil {
			return wt, nil
		}
	}
	return "", &UnsupportedTypeError{Type: t}
}
