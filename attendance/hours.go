/*
hours.go - Worked hours and proportional daily wage

PURPOSE:
  Pure functions from a day ledger to hours worked, and from hours worked
  to the amount owed for the day.

WORKED INTERVALS:
  [ClockIn, LunchOut) + [LunchIn, ClockOut)

  ┌──────────── worked ────────────┐         ┌──────── worked ────────┐
  ClockIn                     LunchOut      LunchIn                ClockOut

  Open intervals (worker still on shift) are measured against now, so a
  caller can display live accruing hours. Such a value is never final until
  ClockOut exists.

NO-LUNCH POLICY:
  A day holding ClockIn and ClockOut without lunch punches counts the whole
  [ClockIn, ClockOut) span as worked, minus LunchPolicy.AutoDeduct (zero by
  default). The sequencer never produces such a day, but imported or
  administratively corrected days can.

PRORATION:
  hours >= minimum  → full base wage (no overtime premium)
  hours <  minimum  → base * hours / minimum, rounded half-up to minor units
  hours is clamped to [0, 24]; NaN counts as 0. The result is never negative.
  A minimum that is not a positive finite number means full pay.
*/
package attendance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinimumHoursForFullPay is the full-day threshold when a tenant sets none.
const DefaultMinimumHoursForFullPay = 8.0

const maxHoursPerDay = 24.0

// LunchPolicy configures how a day without lunch punches is counted.
type LunchPolicy struct {
	AutoDeduct time.Duration `json:"auto_deduct"`
}

// ComputeHours returns the hours worked in ledger, measuring open intervals
// up to now.
func ComputeHours(ledger DayLedger, now time.Time, policy LunchPolicy) float64 {
	clockIn, hasIn := ledger.TimeOf(ClockIn)
	if !hasIn {
		return 0
	}
	lunchOut, hasLunchOut := ledger.TimeOf(LunchOut)
	lunchIn, hasLunchIn := ledger.TimeOf(LunchIn)
	clockOut, hasOut := ledger.TimeOf(ClockOut)

	var worked time.Duration
	switch {
	case !hasLunchOut && !hasLunchIn && hasOut:
		worked = span(clockIn, clockOut) - policy.AutoDeduct
	case !hasLunchOut:
		worked = span(clockIn, now)
	default:
		worked = span(clockIn, lunchOut)
		if hasLunchIn {
			end := now
			if hasOut {
				end = clockOut
			}
			worked += span(lunchIn, end)
		}
	}

	return clampHours(worked.Hours())
}

// ComputeOwed prorates baseDailyWage by hoursWorked / minimumHoursForFullPay.
func ComputeOwed(hoursWorked float64, baseDailyWage Money, minimumHoursForFullPay float64) Money {
	if baseDailyWage <= 0 {
		return 0
	}
	hours := clampHours(hoursWorked)
	if math.IsNaN(minimumHoursForFullPay) || math.IsInf(minimumHoursForFullPay, 0) ||
		minimumHoursForFullPay <= 0 || hours >= minimumHoursForFullPay {
		return baseDailyWage
	}

	owed := decimal.NewFromInt(int64(baseDailyWage)).
		Mul(decimal.NewFromFloat(hours)).
		Div(decimal.NewFromFloat(minimumHoursForFullPay)).
		Round(0) // half away from zero == half-up for non-negative values

	amount := Money(owed.IntPart())
	// Rounding up can never reach a full day while hours < minimum.
	if amount >= baseDailyWage {
		amount = baseDailyWage - 1
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func span(from, to time.Time) time.Duration {
	if to.Before(from) {
		return 0
	}
	return to.Sub(from)
}

func clampHours(h float64) float64 {
	if math.IsNaN(h) || h < 0 {
		return 0
	}
	if h > maxHoursPerDay {
		return maxHoursPerDay
	}
	return h
}
