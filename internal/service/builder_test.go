package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/askql/internal/service"
)

func TestBuildPaymentsQuery(t *testing.T) {
	cases := []struct {
		name string
		q    service.PaymentsQuery
		want string
	}{
		{
			name: "list with status and window",
			q:    service.PaymentsQuery{Status: service.StatusSuccess, SinceDays: 30},
			want: "SELECT id, user_id, amount, status, created_at FROM payments WHERE status = 'success' " +
				"AND created_at >= CURRENT_TIMESTAMP - INTERVAL '30 days' ORDER BY created_at DESC LIMIT 50",
		},
		{
			name: "count without status",
			q:    service.PaymentsQuery{SinceDays: 7, Aggregate: true},
			want: "SELECT COUNT(*) AS payment_count FROM payments WHERE created_at >= CURRENT_TIMESTAMP - INTERVAL '7 days' LIMIT 50",
		},
		{
			name: "no filters",
			q:    service.PaymentsQuery{},
			want: "SELECT id, user_id, amount, status, created_at FROM payments ORDER BY created_at DESC LIMIT 50",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := service.BuildPaymentsQuery(service.DialectPostgres, c.q)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestBuildPaymentsQuery_RejectsUnknownValues(t *testing.T) {
	_, err := service.BuildPaymentsQuery(service.DialectPostgres, service.PaymentsQuery{Status: "refunded'; --"})
	assert.ErrorIs(t, err, service.ErrOutsideVocabulary)

	_, err = service.BuildPaymentsQuery(service.DialectPostgres, service.PaymentsQuery{SinceDays: 90})
	assert.ErrorIs(t, err, service.ErrOutsideVocabulary)
}

func TestBuildUsersQuery(t *testing.T) {
	got, err := service.BuildUsersQuery(service.DialectBigQuery, service.UsersQuery{Country: "SG", Aggregate: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS user_count FROM users WHERE country = 'SG' LIMIT 50", got)

	got, err = service.BuildUsersQuery(service.DialectBigQuery, service.UsersQuery{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, email, country, plan, created_at FROM users ORDER BY created_at DESC LIMIT 50", got)

	_, err = service.BuildUsersQuery(service.DialectBigQuery, service.UsersQuery{Country: "FR"})
	assert.ErrorIs(t, err, service.ErrOutsideVocabulary)
}

func TestDialect(t *testing.T) {
	assert.Equal(t, service.DialectDuckDB, service.ParseDialect("duckdb"))
	assert.Equal(t, service.DialectBigQuery, service.ParseDialect("bigquery"))
	assert.Equal(t, service.DialectPostgres, service.ParseDialect(""))
	assert.Equal(t, service.DialectPostgres, service.ParseDialect("oracle"))

	assert.Equal(t, "created_at >= CURRENT_TIMESTAMP - INTERVAL '7 days'", service.DialectDuckDB.SinceDays("created_at", 7))
	assert.Contains(t, service.DialectBigQuery.PromptRules(), "TIMESTAMP_SUB")
	assert.Contains(t, service.DialectPostgres.PromptRules(), "PostgreSQL")
}
