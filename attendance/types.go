/*
Package attendance provides the time & attendance engine.

PURPOSE:
  This package records a field worker's day as a short, ordered stream of
  punches (clock in, lunch out, lunch in, clock out), validates every new
  punch against that stream, and derives worked hours and the amount owed
  for the day from it.

KEY CONCEPTS IN THIS FILE (types.go):
  - PunchType: Closed enum with a fixed total order within a day
  - Location: GPS fix attached to a punch
  - Punch: Immutable fact, appended once and never edited
  - EmployeeDayStatus: Off / Working / OnLunch
  - Money: Integer minor currency units

DESIGN PRINCIPLES:
  1. Immutability: Punches are never modified or deleted
  2. Derivation: Ledger, status, hours and pay are recomputed per request
  3. Type Safety: Punch types are an enum, not free-form strings
  4. Explicit Time: The day boundary is computed server-side and passed in

USAGE:
  ledger, err := attendance.NewDayLedger(punches)
  next, ok := attendance.NextAllowed(ledger)

SEE ALSO:
  - sequencer.go: Next legal punch and current status
  - validator.go: Accept / reject decision
  - hours.go: Worked hours and proration
  - service.go: Orchestration over Store and AuditLog
*/
package attendance

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type EmployeeID string
type PunchID string

// =============================================================================
// PUNCH TYPE - Totally ordered within a day
// =============================================================================

// PunchType is one of the four punches of a workday.
// The zero value is not a valid punch type.
type PunchType uint8

const (
	ClockIn PunchType = iota + 1
	LunchOut
	LunchIn
	ClockOut
)

// PunchOrder is the canonical order of a day.
var PunchOrder = [...]PunchType{ClockIn, LunchOut, LunchIn, ClockOut}

var punchNames = map[PunchType]string{
	ClockIn:  "clock_in",
	LunchOut: "lunch_out",
	LunchIn:  "lunch_in",
	ClockOut: "clock_out",
}

var punchAliases = map[string]PunchType{
	"clock_in":     ClockIn,
	"lunch_out":    LunchOut,
	"lunch_in":     LunchIn,
	"clock_out":    ClockOut,
	"entrada":      ClockIn,
	"saida_almoco": LunchOut,
	"volta_almoco": LunchIn,
	"saida":        ClockOut,
}

// ParsePunchType maps a wire name (or a legacy alias) to a PunchType.
func ParsePunchType(s string) (PunchType, error) {
	pt, ok := punchAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPunchType, s)
	}
	return pt, nil
}

func (p PunchType) Valid() bool {
	return p >= ClockIn && p <= ClockOut
}

// Ordinal is the zero-based position of p in PunchOrder. It equals the
// number of punches a ledger must already hold for p to be the next one.
func (p PunchType) Ordinal() int {
	if !p.Valid() {
		panic(fmt.Sprintf("attendance: invalid punch type %d", uint8(p)))
	}
	return int(p) - 1
}

func (p PunchType) String() string {
	if p == 0 {
		return "none"
	}
	if name, ok := punchNames[p]; ok {
		return name
	}
	return fmt.Sprintf("punch_type(%d)", uint8(p))
}

func (p PunchType) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPunchType, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *PunchType) UnmarshalText(b []byte) error {
	pt, err := ParsePunchType(string(b))
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

// =============================================================================
// LOCATION - GPS fix captured by the device
// =============================================================================

type Location struct {
	Latitude   float64
	Longitude  float64
	Address    string // best-effort reverse geocoded
	CapturedAt time.Time
}

// HasValidCoordinates reports whether both coordinates are finite and in range.
func (l Location) HasValidCoordinates() bool {
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) ||
		math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// Coordinates renders the raw "lat,lng" pair used when no address is known.
func (l Location) Coordinates() string {
	return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
}

// =============================================================================
// PUNCH - Immutable clock event
// =============================================================================

type Punch struct {
	ID         PunchID
	TenantID   TenantID
	EmployeeID EmployeeID
	Type       PunchType
	Timestamp  time.Time
	Location   Location
}

// =============================================================================
// STATUS
// =============================================================================

type EmployeeDayStatus string

const (
	StatusOff     EmployeeDayStatus = "off"
	StatusWorking EmployeeDayStatus = "working"
	StatusOnLunch EmployeeDayStatus = "on_lunch"
)

// =============================================================================
// MONEY - Integer minor units (cents)
// =============================================================================

type Money int64
