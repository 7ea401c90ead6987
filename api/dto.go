/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the attendance domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.decode, which decodes and validates in one step. Coordinates are NOT
  range-checked here: an out-of-range fix is a MissingLocation rejection,
  recorded like any other rejected punch, not a 400.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"math"
	"time"

	"github.com/fieldops/timeclock/attendance"
)

// =============================================================================
// REQUESTS
// =============================================================================

// LocationDTO is the device fix sent with a punch.
type LocationDTO struct {
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Address    string    `json:"address" validate:"max=500"`
	CapturedAt time.Time `json:"captured_at"`
}

func (l *LocationDTO) toDomain() attendance.Location {
	loc := attendance.Location{
		Latitude:   math.NaN(),
		Longitude:  math.NaN(),
		Address:    l.Address,
		CapturedAt: l.CapturedAt,
	}
	if l.Latitude != nil {
		loc.Latitude = *l.Latitude
	}
	if l.Longitude != nil {
		loc.Longitude = *l.Longitude
	}
	return loc
}

// RegisterPunchRequest is the body of POST /api/punches.
type RegisterPunchRequest struct {
	Type     string       `json:"type" validate:"required,max=32"`
	Location *LocationDTO `json:"location"`
	// LocationError is set by the client when the device could not produce
	// a fix (permission denied, timeout).
	LocationError string `json:"location_error" validate:"max=500"`
}

// SetPayRequest is the body of PUT /api/admin/employees/{id}/pay.
type SetPayRequest struct {
	BaseDailyWage int64  `json:"base_daily_wage" validate:"gte=0"`
	Currency      string `json:"currency" validate:"required,len=3,uppercase"`
}

// SetSettingsRequest is the body of PUT /api/admin/settings. Durations use
// Go syntax ("2m", "1h30m"). An empty lunch_auto_deduct keeps the server
// default; "0s" turns the deduction off for the tenant.
type SetSettingsRequest struct {
	Timezone               string  `json:"timezone" validate:"omitempty,timezone"`
	LocationTolerance      string  `json:"location_tolerance" validate:"omitempty,max=32"`
	MinimumHoursForFullPay float64 `json:"minimum_hours_for_full_pay" validate:"gte=0,lte=24"`
	LunchAutoDeduct        string  `json:"lunch_auto_deduct" validate:"omitempty,max=32"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type LocationResponseDTO struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address"`
	CapturedAt time.Time `json:"captured_at"`
}

type PunchDTO struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Location  LocationResponseDTO `json:"location"`
}

// DaySummaryDTO is one employee's day. HoursWorked and AmountOwed are live
// values until Final is true.
type DaySummaryDTO struct {
	EmployeeID  string     `json:"employee_id"`
	Date        string     `json:"date"`
	Status      string     `json:"status"`
	NextAllowed string     `json:"next_allowed,omitempty"`
	HoursWorked float64    `json:"hours_worked"`
	AmountOwed  int64      `json:"amount_owed"`
	Currency    string     `json:"currency"`
	Final       bool       `json:"final"`
	Punches     []PunchDTO `json:"punches"`
}

// PunchResponse is returned for both accepted and rejected punches.
type PunchResponse struct {
	Outcome  string    `json:"outcome"`
	Reason   string    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
	Expected string    `json:"expected,omitempty"`
	Punch    *PunchDTO `json:"punch,omitempty"`
	DaySummaryDTO
}

type PayProfileDTO struct {
	EmployeeID    string `json:"employee_id"`
	BaseDailyWage int64  `json:"base_daily_wage"`
	Currency      string `json:"currency"`
}

type SettingsDTO struct {
	Timezone               string  `json:"timezone"`
	LocationTolerance      string  `json:"location_tolerance"`
	MinimumHoursForFullPay float64 `json:"minimum_hours_for_full_pay"`
	LunchAutoDeduct        string  `json:"lunch_auto_deduct"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPunchDTO(p attendance.Punch) PunchDTO {
	return PunchDTO{
		ID:        string(p.ID),
		Type:      p.Type.String(),
		Timestamp: p.Timestamp,
		Location: LocationResponseDTO{
			Latitude:   p.Location.Latitude,
			Longitude:  p.Location.Longitude,
			Address:    p.Location.Address,
			CapturedAt: p.Location.CapturedAt,
		},
	}
}

func toDaySummaryDTO(s attendance.DaySummary) DaySummaryDTO {
	dto := DaySummaryDTO{
		EmployeeID:  string(s.EmployeeID),
		Date:        s.Day.Date,
		Status:      string(s.Status),
		HoursWorked: math.Round(s.HoursWorked*100) / 100,
		AmountOwed:  int64(s.AmountOwed),
		Currency:    s.Currency,
		Final:       s.Final,
		Punches:     make([]PunchDTO, 0, s.Ledger.Len()),
	}
	if s.NextAllowed.Valid() {
		dto.NextAllowed = s.NextAllowed.String()
	}
	for _, p := range s.Ledger.Punches {
		dto.Punches = append(dto.Punches, toPunchDTO(p))
	}
	return dto
}

func toPunchResponse(res *attendance.PunchResult) PunchResponse {
	resp := PunchResponse{
		Outcome:       string(res.Outcome),
		DaySummaryDTO: toDaySummaryDTO(res.Summary),
	}
	if res.Punch != nil {
		p := toPunchDTO(*res.Punch)
		resp.Punch = &p
	}
	if r := res.Rejection; r != nil {
		resp.Reason = string(r.Reason)
		resp.Message = r.Message
		if r.Expected.Valid() {
			resp.Expected = r.Expected.String()
		}
	}
	return resp
}

func toSettingsDTO(s attendance.TenantSettings) SettingsDTO {
	return SettingsDTO{
		Timezone:               s.Timezone,
		LocationTolerance:      s.LocationTolerance.String(),
		MinimumHoursForFullPay: s.MinimumHoursForFullPay,
		LunchAutoDeduct:        s.EffectiveLunch().AutoDeduct.String(),
	}
}
