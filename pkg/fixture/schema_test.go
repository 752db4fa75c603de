package fixture

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
)

func TestBQFixture_Fixture_Schema_InjectsIDColumn(t *testing.T) {
	t.Parallel()

	schema, err := Schema(Table{
		Name:   "people",
		Fields: []Field{{Name: "name", Type: TypeText}},
	})
	require.NoError(t, err)
	require.Len(t, schema, 2)

	require.Equal(t, IDColumn, schema[0].Name)
	require.Equal(t, bigquery.IntegerFieldType, schema[0].Type)
	require.True(t, schema[0].Required)

	require.Equal(t, "name", schema[1].Name)
	require.Equal(t, bigquery.StringFieldType, schema[1].Type)
}

func TestBQFixture_Fixture_Schema_RepeatedAndNested(t *testing.T) {
	t.Parallel()

	schema, err := Schema(Table{
		Name: "orders",
		Fields: []Field{
			{Name: "tags", Type: TypeText, Repeated: true},
			{Name: "address", Type: TypeRecord, Fields: []Field{
				{Name: "street", Type: TypeVarchar},
				{Name: "zip", Type: TypeInteger},
			}},
		},
	})
	require.NoError(t, err)
	require.Len(t, schema, 3)

	require.True(t, schema[1].Repeated)
	require.Equal(t, bigquery.StringFieldType, schema[1].Type)

	require.Equal(t, bigquery.RecordFieldType, schema[2].Type)
	require.Len(t, schema[2].Schema, 2)
	require.Equal(t, "street", schema[2].Schema[0].Name)
	require.Equal(t, bigquery.StringFieldType, schema[2].Schema[0].Type)
}

func TestBQFixture_Fixture_Schema_InvalidIdentifier(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "1starts_with_digit", "has-dash", "has.dot", strings.Repeat("x", 129)} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Schema(Table{
				Name:   "bad",
				Fields: []Field{{Name: name, Type: TypeText}},
			})
			require.Error(t, err)
			var iie *InvalidIdentifierError
			require.True(t, errors.As(err, &iie))
			require.Equal(t, name, iie.Name)
		})
	}
}

func TestBQFixture_Fixture_Schema_NestedInvalidIdentifier(t *testing.T) {
	t.Parallel()

	_, err := Schema(Table{
		Name: "bad",
		Fields: []Field{{Name: "address", Type: TypeRecord, Fields: []Field{
			{Name: "bad-street", Type: TypeText},
		}}},
	})
	var iie *InvalidIdentifierError
	require.True(t, errors.As(err, &iie))
}

func TestBQFixture_Fixture_Schema_InvalidTableName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "bad-table.name", "has space", strings.Repeat("z", 1025)} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Schema(Table{
				Name:   name,
				Fields: []Field{{Name: "name", Type: TypeText}},
			})
			require.Error(t, err)
			var iie *InvalidIdentifierError
			require.True(t, errors.As(err, &iie))
			require.Equal(t, name, iie.Name)
		})
	}
}

func TestBQFixture_Fixture_ValidColumnName(t *testing.T) {
	t.Parallel()

	valid := []string{"a", "_a", "with space", "A1_b2", strings.Repeat("y", 128)}
	for _, name := range valid {
		require.True(t, ValidColumnName(name), name)
	}
	invalid := []string{"", " leading_space", "1digit", "semi;colon", strings.Repeat("y", 129)}
	for _, name := range invalid {
		require.False(t, ValidColumnName(name), name)
	}
}

func TestBQFixture_Fixture_ValidDatasetName(t *testing.T) {
	t.Parallel()

	valid := []string{"a", "v1_my_db__transient_1700000000000", strings.Repeat("z", 1024)}
	for _, name := range valid {
		require.True(t, ValidDatasetName(name), name)
	}
	invalid := []string{"", "has-dash", "has space", "has.dot", strings.Repeat("z", 1025)}
	for _, name := range invalid {
		require.False(t, ValidDatasetName(name), name)
	}
}

func TestBQFixture_Fixture_FormatIdentifier(t *testing.T) {
	t.Parallel()

	require.Equal(t, "my_test_db", FormatIdentifier("my test-db"))
	require.Equal(t, "plain", FormatIdentifier("plain"))
	require.Equal(t, "a_b_c", FormatIdentifier("a.b/c"))
	require.Equal(t, "x_y", FormatIdentifier("x---y"))
}
