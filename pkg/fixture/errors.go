package fixture

import "fmt"

// UnsupportedTypeError reports a fixture type with no warehouse mapping
// anywhere in its ancestry. Never retried: the data cannot be expressed.
type UnsupportedTypeError struct {
	Type FieldType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no BigQuery mapping for fixture type %q", e.Type)
}

// InvalidIdentifierError reports a resolved table or column name that
// violates the warehouse identifier grammar. Raised before any remote call.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid BigQuery identifier %q", e.Name)
}
