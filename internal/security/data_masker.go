package security

import (
	"fmt"
	"strings"
)

// DataMasker masks sensitive column values in query results.
// Only columns named in the configured list are touched.
type DataMasker struct {
	columns map[string]bool
}

func NewDataMasker(sensitiveColumns []string) *DataMasker {
	cols := make(map[string]bool, len(sensitiveColumns))
	for _, c := range sensitiveColumns {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cols[c] = true
		}
	}
	return &DataMasker{columns: cols}
}

// MaskRows returns a copy of rows with sensitive values masked. A nil masker
// returns rows unchanged.
func (m *DataMasker) MaskRows(rows []map[string]any) []map[string]any {
	if m == nil || len(m.columns) == 0 {
		return rows
	}
	masked := make([]map[string]any, len(rows))
	for i, row := range rows {
		out := make(map[string]any, len(row))
		for col, val := range row {
			if val != nil && m.columns[strings.ToLower(col)] {
				out[col] = maskValue(col, fmt.Sprintf("%v", val))
			} else {
				out[col] = val
			}
		}
		masked[i] = out
	}
	return masked
}

func maskValue(col, val string) string {
	lower := strings.ToLower(col)
	switch {
	case strings.Contains(lower, "email"):
		return maskEmail(val)
	case strings.Contains(lower, "phone"):
		return maskTrailingDigits(val, "***-***-")
	case strings.Contains(lower, "card"):
		return maskTrailingDigits(val, "****-****-****-")
	default:
		return "***"
	}
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}
	runes := []rune(local)
	visible := min(2, len(runes))
	ext := domain[strings.LastIndex(domain, ".")+1:]
	return fmt.Sprintf("%s***@***.%s", string(runes[:visible]), ext)
}

// maskTrailingDigits keeps the last four digits behind prefix.
func maskTrailingDigits(val, prefix string) string {
	var digits strings.Builder
	for _, c := range val {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return prefix + "****"
	}
	return prefix + d[len(d)-4:]
}
