// Package schema holds the fixed analytics schema every query is checked against.
package schema

import (
	"fmt"
	"strings"
)

// RowCap is the maximum number of rows any query may return.
const RowCap = 50

// TimeColumn is the column time-series tables are filtered on.
const TimeColumn = "created_at"

// Table describes one allow-listed table.
type Table struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	TimeSeries bool     `json:"time_series"`
}

// Tables is the allow-listed schema, in prompt order.
var Tables = []Table{
	{Name: "users", Columns: []string{"id", "name", "email", "country", "plan", "created_at"}},
	{Name: "payments", Columns: []string{"id", "user_id", "amount", "status", "created_at"}, TimeSeries: true},
	{Name: "events", Columns: []string{"id", "user_id", "name", "created_at"}, TimeSeries: true},
	{Name: "tickets", Columns: []string{"id", "user_id", "category", "status", "created_at"}},
}

// Lookup returns the table with the given name, case-insensitively.
func Lookup(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// IsAllowed reports whether name is one of the allow-listed tables.
func IsAllowed(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// TimeSeriesTables returns the names of tables that require a time window.
func TimeSeriesTables() []string {
	var names []string
	for _, t := range Tables {
		if t.TimeSeries {
			names = append(names, t.Name)
		}
	}
	return names
}

// Describe renders the schema as one "table(col, col, ...)" line per table.
func Describe() string {
	var b strings.Builder
	for _, t := range Tables {
		fmt.Fprintf(&b, "%s(%s)\n", t.Name, strings.Join(t.Columns, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
