package agent

import (
	"fmt"
	"strings"

	"github.com/cortexai/askql/internal/schema"
	"github.com/cortexai/askql/internal/service"
)

const promptInstructions = `You are an expert data analyst. Write one SQL query that answers the question.

RULES:
1. Generate only a single SELECT (or WITH ... SELECT) statement - never INSERT, UPDATE, DELETE, DROP or DDL
2. Use only the tables and columns listed in the schema
3. Never use SELECT *; list the columns you need
4. Queries on payments or events must filter created_at in the WHERE clause
5. Do not join a table to itself
6. End the query with LIMIT %d or less and a semicolon
7. Output the SQL only, with no explanation`

type promptExample struct {
	question string
	sql      string
}

func promptExamples(d service.Dialect) []promptExample {
	last7 := d.SinceDays(schema.TimeColumn, 7)
	last30 := d.SinceDays(schema.TimeColumn, 30)
	return []promptExample{
		{"How many users are there?", "SELECT COUNT(*) AS user_count FROM users LIMIT 50;"},
		{"How many users from IN?", "SELECT COUNT(*) AS user_count FROM users WHERE country = 'IN' LIMIT 50;"},
		{"Count users by country", "SELECT country, COUNT(*) AS user_count FROM users GROUP BY country ORDER BY user_count DESC LIMIT 50;"},
		{"Show failed payments last 7 days",
			"SELECT id, user_id, amount, status, created_at FROM payments WHERE status = 'failed' AND " + last7 + " ORDER BY created_at DESC LIMIT 50;"},
		{"Total payment amount per user in the last 30 days",
			"SELECT user_id, SUM(amount) AS total_amount FROM payments WHERE " + last30 + " GROUP BY user_id ORDER BY total_amount DESC LIMIT 50;"},
		{"Which events happened most in the last 7 days?",
			"SELECT name, COUNT(*) AS event_count FROM events WHERE " + last7 + " GROUP BY name ORDER BY event_count DESC LIMIT 50;"},
		{"Open tickets per plan",
			"SELECT u.plan, COUNT(*) AS open_tickets FROM tickets t JOIN users u ON u.id = t.user_id WHERE t.status = 'open' GROUP BY u.plan LIMIT 50;"},
	}
}

// BuildPrompt assembles the generator prompt for a normalized question.
func BuildPrompt(d service.Dialect, question string, s service.IntentSignals) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, promptInstructions, schema.RowCap)
	sb.WriteString("\n\nDIALECT:\n")
	sb.WriteString(d.PromptRules())
	sb.WriteString("\n\nSCHEMA:\n")
	sb.WriteString(schema.Describe())
	sb.WriteString("\n\nEXAMPLES:\n")
	for _, ex := range promptExamples(d) {
		fmt.Fprintf(&sb, "Q: %s\nSQL: %s\n\n", ex.question, ex.sql)
	}
	fmt.Fprintf(&sb, "Q: %s\n%s\nSQL:", question, s.Hint())
	return sb.String()
}
