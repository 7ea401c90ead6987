/*
validator.go - Accept / reject decision for a candidate punch

PURPOSE:
  Decides whether a candidate punch may be appended to a day ledger. The
  decision is pure: same ledger snapshot + same input = same decision. The
  validator never persists anything; the PunchService does.

CHECKS (in order, first failure wins):
  1. Sequence   - candidate must be NextAllowed(ledger). When the day is
                  already closed the rejection is DayAlreadyClosed, otherwise
                  OutOfSequence.
  2. Freshness  - location.CapturedAt within LocationTolerance of now.
  3. Presence   - coordinates present, finite and within range.

REJECTIONS ARE VALUES:
  A rejection is a normal negative outcome with a reason code and a message
  the front end can show as-is. It is never returned as an error.

SEE ALSO:
  - sequencer.go: NextAllowed
  - service.go: Persists accepted punches, records rejected attempts
*/
package attendance

import (
	"fmt"
	"time"
)

// DefaultLocationTolerance is used when a Validator has no tolerance set.
const DefaultLocationTolerance = 2 * time.Minute

// =============================================================================
// REJECTION
// =============================================================================

type RejectReason string

const (
	RejectOutOfSequence    RejectReason = "out_of_sequence"
	RejectStaleLocation    RejectReason = "stale_location"
	RejectMissingLocation  RejectReason = "missing_location"
	RejectDayAlreadyClosed RejectReason = "day_already_closed"
)

type Rejection struct {
	Reason    RejectReason
	Candidate PunchType
	Expected  PunchType // zero when the day is closed or not applicable
	Message   string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// =============================================================================
// DECISION
// =============================================================================

// Decision is the validator's verdict. Exactly one of Punch (when Accepted)
// or Rejection is meaningful.
type Decision struct {
	Accepted  bool
	Punch     Punch
	Rejection *Rejection
}

func accept(p Punch) Decision { return Decision{Accepted: true, Punch: p} }

func reject(r *Rejection) Decision { return Decision{Rejection: r} }

// =============================================================================
// VALIDATOR
// =============================================================================

type Validator struct {
	LocationTolerance time.Duration
}

func (v Validator) tolerance() time.Duration {
	if v.LocationTolerance <= 0 {
		return DefaultLocationTolerance
	}
	return v.LocationTolerance
}

// Validate decides whether candidate may follow ledger at now.
// On acceptance the returned Punch carries type, timestamp and location; the
// caller stamps identity fields before persisting it.
func (v Validator) Validate(ledger DayLedger, candidate PunchType, loc *Location, now time.Time) Decision {
	next, open := NextAllowed(ledger)
	if !open {
		return reject(&Rejection{
			Reason:    RejectDayAlreadyClosed,
			Candidate: candidate,
			Message:   "you already clocked out today; no more punches are accepted until tomorrow",
		})
	}
	if candidate != next {
		return reject(&Rejection{
			Reason:    RejectOutOfSequence,
			Candidate: candidate,
			Expected:  next,
			Message:   sequenceMessage(candidate, next),
		})
	}
	if last, ok := ledger.Last(); ok && !now.After(last.Timestamp) {
		return reject(&Rejection{
			Reason:    RejectOutOfSequence,
			Candidate: candidate,
			Expected:  next,
			Message:   fmt.Sprintf("a punch must be later than your previous %s at %s", last.Type, last.Timestamp.Format(time.Kitchen)),
		})
	}

	// A nil location has no capture time to judge; it falls through to the
	// presence check.
	if loc != nil {
		age := now.Sub(loc.CapturedAt)
		if age < 0 {
			age = -age
		}
		if loc.CapturedAt.IsZero() || age > v.tolerance() {
			return reject(&Rejection{
				Reason:    RejectStaleLocation,
				Candidate: candidate,
				Expected:  next,
				Message: fmt.Sprintf("your location was captured %s away from the punch time (limit %s); capture a fresh location and try again",
					age.Round(time.Second), v.tolerance()),
			})
		}
	}

	if loc == nil || !loc.HasValidCoordinates() {
		return reject(&Rejection{
			Reason:    RejectMissingLocation,
			Candidate: candidate,
			Expected:  next,
			Message:   "a valid GPS location is required to register a punch",
		})
	}

	return accept(Punch{
		Type:      candidate,
		Timestamp: now,
		Location:  *loc,
	})
}

// =============================================================================
// MESSAGES
// =============================================================================

var punchVerbs = map[PunchType]string{
	ClockIn:  "clock in",
	LunchOut: "go to lunch",
	LunchIn:  "return from lunch",
	ClockOut: "clock out",
}

var punchDone = map[PunchType]string{
	ClockIn:  "clocked in",
	LunchOut: "went to lunch",
	LunchIn:  "returned from lunch",
	ClockOut: "clocked out",
}

func sequenceMessage(candidate, expected PunchType) string {
	if !candidate.Valid() {
		return fmt.Sprintf("unknown punch; you must %s next", punchVerbs[expected])
	}
	if candidate.Ordinal() < expected.Ordinal() {
		return fmt.Sprintf("you already %s today; you must %s next",
			punchDone[candidate], punchVerbs[expected])
	}
	return fmt.Sprintf("you must %s before you can %s",
		punchVerbs[expected], punchVerbs[candidate])
}
