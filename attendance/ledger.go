/*
ledger.go - The ordered punches of one employee for one day

PURPOSE:
  DayLedger is the derived view every decision is made from. It is rebuilt
  from a Store read on every request and never cached, so two clients can
  never act on different copies of the same day.

CRITICAL INVARIANTS:
  1. ORDERED: Strictly increasing timestamps
  2. UNIQUE: At most one punch of each PunchType
  3. PREFIX: Types form a prefix of ClockIn, LunchOut, LunchIn, ClockOut

  NewDayLedger refuses any input that breaks these. A failure here means the
  store accepted data that should have been impossible, so callers treat it
  as fatal for the request rather than trying to repair it.

SEE ALSO:
  - sequencer.go: Reads the last punch type
  - hours.go: Reads punch timestamps by type
*/
package attendance

import (
	"fmt"
	"sort"
	"time"
)

type DayLedger struct {
	Punches []Punch
}

// NewDayLedger sorts punches by timestamp and checks the day invariants.
// The input slice is not modified.
func NewDayLedger(punches []Punch) (DayLedger, error) {
	sorted := make([]Punch, len(punches))
	copy(sorted, punches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if len(sorted) > len(PunchOrder) {
		return DayLedger{}, &LedgerError{
			Index:  len(PunchOrder),
			Punch:  sorted[len(PunchOrder)],
			Detail: fmt.Sprintf("%d punches in one day", len(sorted)),
		}
	}

	for i, p := range sorted {
		if !p.Type.Valid() {
			return DayLedger{}, &LedgerError{Index: i, Punch: p, Detail: "invalid punch type"}
		}
		if p.Type != PunchOrder[i] {
			return DayLedger{}, &LedgerError{
				Index:  i,
				Punch:  p,
				Detail: fmt.Sprintf("expected %s at position %d", PunchOrder[i], i),
			}
		}
		if i > 0 && !p.Timestamp.After(sorted[i-1].Timestamp) {
			return DayLedger{}, &LedgerError{Index: i, Punch: p, Detail: "timestamp not after previous punch"}
		}
	}
	return DayLedger{Punches: sorted}, nil
}

func (l DayLedger) Len() int { return len(l.Punches) }

func (l DayLedger) IsEmpty() bool { return len(l.Punches) == 0 }

// Last returns the most recent punch.
func (l DayLedger) Last() (Punch, bool) {
	if len(l.Punches) == 0 {
		return Punch{}, false
	}
	return l.Punches[len(l.Punches)-1], true
}

// Find returns the punch of the given type, if present.
func (l DayLedger) Find(t PunchType) (Punch, bool) {
	for _, p := range l.Punches {
		if p.Type == t {
			return p, true
		}
	}
	return Punch{}, false
}

// TimeOf returns the timestamp of the punch of type t.
func (l DayLedger) TimeOf(t PunchType) (time.Time, bool) {
	p, ok := l.Find(t)
	return p.Timestamp, ok
}

// IsClosed reports whether the day has been clocked out.
func (l DayLedger) IsClosed() bool {
	_, ok := l.Find(ClockOut)
	return ok
}

// Types returns the punch types in ledger order.
func (l DayLedger) Types() []PunchType {
	types := make([]PunchType, len(l.Punches))
	for i, p := range l.Punches {
		types[i] = p.Type
	}
	return types
}

// With returns a new ledger with p appended. The receiver is left untouched.
func (l DayLedger) With(p Punch) DayLedger {
	punches := make([]Punch, len(l.Punches), len(l.Punches)+1)
	copy(punches, l.Punches)
	return DayLedger{Punches: append(punches, p)}
}
