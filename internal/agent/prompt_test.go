package agent_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cortexai/askql/internal/agent"
	"github.com/cortexai/askql/internal/service"
)

func TestExtractStatement(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "SELECT id FROM users LIMIT 5;", "SELECT id FROM users LIMIT 5;"},
		{"fenced", "```sql\nSELECT id FROM users;\n```", "SELECT id FROM users;"},
		{"leading prose", "Sure! Here it is:\nSELECT id FROM users; -- done", "SELECT id FROM users;"},
		{"first of two", "SELECT id FROM users; SELECT id FROM tickets;", "SELECT id FROM users;"},
		{"multi-line", "SELECT id,\n  email\nFROM users\nLIMIT 5;", "SELECT id,\n  email\nFROM users\nLIMIT 5;"},
		{"cte", "WITH recent AS (SELECT user_id FROM payments) SELECT user_id FROM recent;",
			"WITH recent AS (SELECT user_id FROM payments) SELECT user_id FROM recent;"},
		{"semicolon in literal", "SELECT id FROM users WHERE name = 'a;b' LIMIT 5; -- ok",
			"SELECT id FROM users WHERE name = 'a;b' LIMIT 5;"},
		{"no terminator", "\n\nSELECT id FROM users\nLIMIT 5", "SELECT id FROM users"},
		{"empty", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agent.ExtractStatement(tt.raw))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	sig := service.IntentSignals{IsFilter: true, IsAggregate: true}
	prompt := agent.BuildPrompt(service.DialectPostgres, "how many users from IN", sig)

	for _, want := range []string{
		"LIMIT 50",
		"users(id, name, email, country, plan, created_at)",
		"payments(id, user_id, amount, status, created_at)",
		"INTERVAL '7 days'",
		"Intent hints: filter=true, group_by=false, aggregate=true, has_time_range=false",
	} {
		assert.Contains(t, prompt, want)
	}
	assert.True(t, strings.HasSuffix(prompt, "SQL:"))

	bq := agent.BuildPrompt(service.DialectBigQuery, "q", service.IntentSignals{})
	assert.Contains(t, bq, "TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL 7 DAY)")
}

func TestGeneratorNames(t *testing.T) {
	assert.Equal(t, "anthropic", agent.NewAnthropicGenerator("k", "", "", 0).Name())
	assert.Equal(t, "openai", agent.NewOpenAIGenerator("k", "", "", 0).Name())
}
