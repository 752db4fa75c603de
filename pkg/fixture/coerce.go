package fixture

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Symbol is an enum-like fixture token. It coerces to its plain-text name.
type Symbol string

// OffsetTime is a time-of-day with a UTC offset. BigQuery has no
// time-with-zone type, so coercion shifts the value to UTC and drops the
// offset.
type OffsetTime struct {
	Time          civil.Time
	OffsetMinutes int
}

// BigQuery rejects sub-microsecond precision in loaded data, and rejects
// explicit offsets and zone ids in the load path even though query SQL
// accepts both. Datetimes are therefore normalized to UTC, truncated to
// microseconds and written as zone-less literals.
const (
	dateTimeLiteral = "2006-01-02T15:04:05.999999"
	timeLiteral     = "15:04:05.999999"
)

// Coerce converts a single fixture value to its wire-acceptable
// representation. It is total: values with no special handling pass through
// unchanged for the insert layer to serialize as-is.
func Coerce(v any) bigquery.Value {
	switch v := v.(type) {
	case nil:
		return nil
	case Symbol:
		return string(v)
	case time.Time:
		return v.UTC().Truncate(time.Microsecond).Format(dateTimeLiteral)
	case civil.DateTime:
		return v.In(time.UTC).Truncate(time.Microsecond).Format(dateTimeLiteral)
	case civil.Date:
		return v.String()
	case civil.Time:
		return timeOfDay(v, time.UTC).Format(timeLiteral)
	case OffsetTime:
		zone := time.FixedZone("", v.OffsetMinutes*60)
		return timeOfDay(v.Time, zone).UTC().Format(timeLiteral)
	default:
		return v
	}
}

// timeOfDay anchors a civil time on an arbitrary fixed date so the stdlib
// formatting and zone math can be reused. The date never appears in output.
func timeOfDay(t civil.Time, loc *time.Location) time.Time {
	return time.Date(1970, time.January, 1, t.Hour, t.Minute, t.Second, t.Nanosecond, loc)
}

// PrepareRows turns a table's row data into insert-ready value maps: every
// cell coerced, plus the synthetic id column set to the 1-based row position.
// Ids derive from position, not a generator, so re-preparing the same table
// yields identical rows.
func PrepareRows(t Table) ([]map[string]bigquery.Value, error) {
	rows := make([]map[string]bigquery.Value, 0, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) != len(t.Fields) {
			return nil, fmt.Errorf("table %s: row %d has %d values, expected %d", t.Name, i+1, len(row), len(t.Fields))
		}
		m := make(map[string]bigquery.Value, len(row)+1)
		m[IDColumn] = i + 1
		for j, v := range row {
			m[t.Fields[j].Name] = Coerce(v)
		}
		rows = append(rows, m)
	}
	return rows, nil
}
