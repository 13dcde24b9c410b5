// Package rollover implements the per-category carryover math applied when a
// budget cycle closes. The engine is period-agnostic: it is invoked once per
// leaf category per close with that category's mode, the running total carried
// through the previous cycle, and the closed cycle's over/under amount.
package rollover

import "cycleledger/internal/models"

// Result holds the outcome of applying one cycle's over/under amount.
// CarryoverOut is attributed to the next cycle's opening balance as its
// carryover-in; NewRunningTotal is the cumulative carryover through this cycle.
type Result struct {
	CarryoverOut    float64 `json:"carryover_out"`
	NewRunningTotal float64 `json:"new_running_total"`
}

// Apply computes the carryover for a closed cycle.
//
//	none:     nothing carries; the running total resets to zero.
//	positive: only surplus carries; the running total never drops below zero.
//	negative: only deficit carries; the running total never rises above zero.
//	both:     full carry, unclamped in either direction.
//
// Unknown modes behave as none, so a mode added by a newer client degrades to
// no carryover instead of corrupting totals.
func Apply(mode models.RolloverMode, priorRunningTotal, periodOverUnder float64) Result {
	switch mode {
	case models.RolloverPositive:
		out := max(periodOverUnder, 0)
		return Result{
			CarryoverOut:    out,
			NewRunningTotal: max(priorRunningTotal+out, 0),
		}
	case models.RolloverNegative:
		out := min(periodOverUnder, 0)
		return Result{
			CarryoverOut:    out,
			NewRunningTotal: min(priorRunningTotal+out, 0),
		}
	case models.RolloverBoth:
		return Result{
			CarryoverOut:    periodOverUnder,
			NewRunningTotal: priorRunningTotal + periodOverUnder,
		}
	default:
		return Result{}
	}
}
