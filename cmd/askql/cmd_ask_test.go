package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexai/askql/internal/models"
)

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, &models.Response{
		Answer:      "Here are the results of your query.",
		Explanation: "Returned 2 rows with columns: plan, n.",
		SQL:         "SELECT plan, COUNT(*) AS n FROM users GROUP BY plan LIMIT 50",
		Columns:     []string{"plan", "n"},
		Rows: []map[string]any{
			{"plan": "pro", "n": int64(3)},
			{"plan": nil, "n": 1.5},
		},
		Confidence: 0.4,
		Warnings:   []string{"LIMIT 50 was automatically applied for safety"},
		Route:      "generated",
	})

	out := buf.String()
	assert.Contains(t, out, "Here are the results of your query.")
	assert.Contains(t, out, "GROUP BY plan LIMIT 50")
	assert.Contains(t, out, "pro")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "1.50")
	assert.Contains(t, out, "warning: LIMIT 50 was automatically applied for safety")
	assert.True(t, strings.HasSuffix(out, "[route=generated confidence=0.4]\n"))
}

func TestPrintResponse_NoRows(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, &models.Response{
		Answer:      "I need more information to answer this.",
		Explanation: "Which time range should I use?",
		Warnings:    []string{},
		Route:       "clarification",
	})
	assert.NotContains(t, buf.String(), "+-")
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	validateCmd.SetOut(&buf)
	jsonFlag = false
	require.NoError(t, runValidate(validateCmd, []string{"DELETE", "FROM", "users"}))
	assert.Contains(t, buf.String(), "verdict: blocked")
	assert.Contains(t, buf.String(), "reason:")
}
