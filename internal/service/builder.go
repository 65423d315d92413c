package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cortexai/askql/internal/schema"
)

// ErrOutsideVocabulary is returned when a builder receives a value it does not know.
var ErrOutsideVocabulary = errors.New("value outside the builder vocabulary")

var (
	allowedCountries = map[string]bool{"IN": true, "US": true, "UK": true, "DE": true, "SG": true}
	allowedStatuses  = map[string]bool{StatusFailed: true, StatusSuccess: true}
	allowedWindows   = map[int]bool{7: true, 30: true}
)

// PaymentsQuery describes a deterministic payments query.
// Zero values mean "no filter".
type PaymentsQuery struct {
	Status    string
	SinceDays int
	Aggregate bool
}

// UsersQuery describes a deterministic users query.
type UsersQuery struct {
	Country   string
	Aggregate bool
}

// BuildPaymentsQuery renders a payments query for the dialect.
func BuildPaymentsQuery(d Dialect, q PaymentsQuery) (string, error) {
	if q.Status != "" && !allowedStatuses[q.Status] {
		return "", fmt.Errorf("payment status %q: %w", q.Status, ErrOutsideVocabulary)
	}
	if q.SinceDays != 0 && !allowedWindows[q.SinceDays] {
		return "", fmt.Errorf("day window %d: %w", q.SinceDays, ErrOutsideVocabulary)
	}

	var where []string
	if q.Status != "" {
		where = append(where, fmt.Sprintf("status = '%s'", q.Status))
	}
	if q.SinceDays != 0 {
		where = append(where, d.SinceDays(schema.TimeColumn, q.SinceDays))
	}

	if q.Aggregate {
		return selectQuery("COUNT(*) AS "+paymentsAlias(q.Status), "payments", where, ""), nil
	}
	return selectQuery(columnList("payments"), "payments", where, "created_at DESC"), nil
}

// BuildUsersQuery renders a users query for the dialect.
func BuildUsersQuery(d Dialect, q UsersQuery) (string, error) {
	if q.Country != "" && !allowedCountries[q.Country] {
		return "", fmt.Errorf("country %q: %w", q.Country, ErrOutsideVocabulary)
	}

	var where []string
	if q.Country != "" {
		where = append(where, fmt.Sprintf("country = '%s'", q.Country))
	}

	if q.Aggregate {
		return selectQuery("COUNT(*) AS user_count", "users", where, ""), nil
	}
	return selectQuery(columnList("users"), "users", where, "created_at DESC"), nil
}

func paymentsAlias(status string) string {
	switch status {
	case StatusFailed:
		return "failed_payments"
	case StatusSuccess:
		return "successful_payments"
	default:
		return "payment_count"
	}
}

func columnList(table string) string {
	t, _ := schema.Lookup(table)
	return strings.Join(t.Columns, ", ")
}

func selectQuery(cols, table string, where []string, orderBy string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}
	fmt.Fprintf(&b, " LIMIT %d", schema.RowCap)
	return b.String()
}
