package attendance

import "fmt"

// =============================================================================
// SEQUENCER - Pure state machine over a day's punches
// =============================================================================
//
//   (empty) ──▶ ClockIn ──▶ LunchOut ──▶ LunchIn ──▶ ClockOut ──▶ (closed)
//     Off       Working     OnLunch      Working     Off

var nextPunch = map[PunchType]PunchType{
	ClockIn:  LunchOut,
	LunchOut: LunchIn,
	LunchIn:  ClockOut,
}

var statusAfter = map[PunchType]EmployeeDayStatus{
	ClockIn:  StatusWorking,
	LunchOut: StatusOnLunch,
	LunchIn:  StatusWorking,
	ClockOut: StatusOff,
}

// NextAllowed returns the only punch type the ledger accepts next.
// ok is false once the day is closed.
//
// Ledgers are built from validated punches only, so an unknown last type is
// a programming error and panics.
func NextAllowed(ledger DayLedger) (next PunchType, ok bool) {
	last, exists := ledger.Last()
	if !exists {
		return ClockIn, true
	}
	if last.Type == ClockOut {
		return 0, false
	}
	next, known := nextPunch[last.Type]
	if !known {
		panic(fmt.Sprintf("attendance: ledger ends with invalid punch type %d", uint8(last.Type)))
	}
	return next, true
}

// StatusOf derives the employee's current status from the last punch.
func StatusOf(ledger DayLedger) EmployeeDayStatus {
	last, exists := ledger.Last()
	if !exists {
		return StatusOff
	}
	status, known := statusAfter[last.Type]
	if !known {
		panic(fmt.Sprintf("attendance: ledger ends with invalid punch type %d", uint8(last.Type)))
	}
	return status
}
