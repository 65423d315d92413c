package security

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 5.0 // USD

// ErrCostLimitExceeded is returned when a dry run reports more bytes than allowed.
var ErrCostLimitExceeded = errors.New("query cost limit exceeded")

// CostTracker enforces warehouse byte limits from dry-run estimates
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// CheckLimits returns ErrCostLimitExceeded when bytes exceed the limit.
// A zero limit disables the check.
func (ct *CostTracker) CheckLimits(totalBytesProcessed int64) error {
	if ct == nil || ct.maxBytes <= 0 || totalBytesProcessed <= ct.maxBytes {
		return nil
	}
	return fmt.Errorf("%w: processed %.2fGB, limit %.2fGB", ErrCostLimitExceeded,
		float64(totalBytesProcessed)/bytesPerGB, float64(ct.maxBytes)/bytesPerGB)
}

// LogQueryCost logs query cost info with a hashed query
func (ct *CostTracker) LogQueryCost(sql string, totalBytesProcessed int64, durationMs int64) {
	processedGB := float64(totalBytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * bigQueryCostPerTB // GB → TB → cost

	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", hashStr(sql)[:16]).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msgf("Query cost: %.4fGB ($%.4f) | Duration: %dms", processedGB, costUSD, durationMs)
}
