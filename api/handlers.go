/*
handlers.go - HTTP API handlers for the time & attendance engine

PURPOSE:
  Exposes the attendance engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to attendance.PunchService.

ENDPOINTS:
  Punches:
    POST   /api/punches                     Register a punch (server clock)
    GET    /api/punches/today               Caller's day summary

  Employees:
    GET    /api/employees/{id}/days/{date}  Day summary (self, or manager)

  Admin (manager role):
    PUT    /api/admin/employees/{id}/pay    Set pay profile
    PUT    /api/admin/settings              Set tenant settings

  Health (no auth):
    GET    /healthz                         Liveness
    GET    /readyz                          Readiness (store ping)

REQUEST FLOW (POST /api/punches):
  1. Read the server clock (the punch time is the arrival time)
  2. Decode + validate body
  3. No usable fix reported by the device -> 422 location_unavailable
  4. Best-effort reverse geocoding when the address is empty, bounded by
     maxGeocodeWait
  5. RegisterPunch with the time from step 1
  6. 200 for both accepted and rejected outcomes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Reading another employee's day without the manager role
  - 404: Unknown employee
  - 422: Location unavailable
  - 503: Store unavailable (retryable: true)
  - 500: Internal errors, corrupt ledger

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Authentication, logging, rate limiting
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fieldops/timeclock/attendance"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is a backing store that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *attendance.PunchService
	Policies attendance.PolicyStore

	// Geocoder is optional. Nil means addresses degrade to coordinates.
	Geocoder       attendance.Geocoder
	GeocodeTimeout time.Duration

	// Clock is the server clock. Punch timestamps never come from clients.
	Clock func() time.Time

	// DB backs the readiness check. Nil reports ready.
	DB Pinger

	validate *validator.Validate
}

// maxGeocodeWait caps the address lookup on the punch path, whatever
// GeocodeTimeout says. It must stay well below the location tolerance.
const maxGeocodeWait = time.Second

// NewHandler creates a handler over service and its policy store.
func NewHandler(service *attendance.PunchService, policies attendance.PolicyStore) *Handler {
	return &Handler{
		Service:        service,
		Policies:       policies,
		GeocodeTimeout: maxGeocodeWait,
		Clock:          time.Now,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

// =============================================================================
// PUNCH HANDLERS
// =============================================================================

// RegisterPunch handles POST /api/punches.
func (h *Handler) RegisterPunch(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	claims, _ := ClaimsFrom(r.Context())
	log := LoggerFrom(r.Context())

	var req RegisterPunchRequest
	if !h.decode(w, r, &req) {
		return
	}

	punchType, err := attendance.ParsePunchType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_punch_type", err.Error())
		return
	}

	if req.Location == nil || req.LocationError != "" {
		err := fmt.Errorf("%w: %s", attendance.ErrLocationUnavailable, locationErrorDetail(req))
		log.Info("punch without location", slog.String("error", err.Error()))
		h.writeServiceError(w, r, err)
		return
	}

	loc := attendance.ResolveAddress(r.Context(), h.Geocoder, req.Location.toDomain(), h.geocodeWait())

	result, err := h.Service.RegisterPunch(r.Context(),
		attendance.TenantID(claims.TenantID),
		attendance.EmployeeID(claims.Subject),
		punchType,
		&loc,
		now,
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPunchResponse(result))
}

func (h *Handler) geocodeWait() time.Duration {
	if h.GeocodeTimeout <= 0 || h.GeocodeTimeout > maxGeocodeWait {
		return maxGeocodeWait
	}
	return h.GeocodeTimeout
}

func locationErrorDetail(req RegisterPunchRequest) string {
	if req.LocationError != "" {
		return req.LocationError
	}
	return "no location was sent"
}

// GetToday handles GET /api/punches/today.
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	summary, err := h.Service.GetDaySummary(r.Context(),
		attendance.TenantID(claims.TenantID),
		attendance.EmployeeID(claims.Subject),
		"",
		h.now(),
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDaySummaryDTO(*summary))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// GetDay handles GET /api/employees/{id}/days/{date}.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	employeeID := chi.URLParam(r, "id")
	date := chi.URLParam(r, "date")

	if employeeID != claims.Subject && !claims.IsManager() {
		writeError(w, http.StatusForbidden, "forbidden", "you can only read your own days")
		return
	}

	summary, err := h.Service.GetDaySummary(r.Context(),
		attendance.TenantID(claims.TenantID),
		attendance.EmployeeID(employeeID),
		date,
		h.now(),
	)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDaySummaryDTO(*summary))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SetPayProfile handles PUT /api/admin/employees/{id}/pay.
func (h *Handler) SetPayProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	employeeID := chi.URLParam(r, "id")

	var req SetPayRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile := attendance.PayProfile{
		TenantID:      attendance.TenantID(claims.TenantID),
		EmployeeID:    attendance.EmployeeID(employeeID),
		BaseDailyWage: attendance.Money(req.BaseDailyWage),
		Currency:      req.Currency,
	}
	if err := h.Policies.SavePayProfile(r.Context(), profile); err != nil {
		h.writeServiceError(w, r, &attendance.StoreError{Op: "save pay profile", Err: err})
		return
	}

	LoggerFrom(r.Context()).Info("pay profile updated",
		slog.String("target_employee_id", employeeID),
		slog.Int64("base_daily_wage", req.BaseDailyWage),
	)
	writeJSON(w, http.StatusOK, PayProfileDTO{
		EmployeeID:    employeeID,
		BaseDailyWage: req.BaseDailyWage,
		Currency:      req.Currency,
	})
}

// SetSettings handles PUT /api/admin/settings.
func (h *Handler) SetSettings(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	var req SetSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}

	settings := attendance.TenantSettings{
		Timezone:               req.Timezone,
		MinimumHoursForFullPay: req.MinimumHoursForFullPay,
	}
	var err error
	if settings.LocationTolerance, err = parseOptionalDuration(req.LocationTolerance); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "location_tolerance: "+err.Error())
		return
	}
	if req.LunchAutoDeduct != "" {
		deduct, err := time.ParseDuration(req.LunchAutoDeduct)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "lunch_auto_deduct: "+err.Error())
			return
		}
		settings.Lunch = &attendance.LunchPolicy{AutoDeduct: deduct}
	}

	if err := h.Policies.SaveTenantSettings(r.Context(), attendance.TenantID(claims.TenantID), settings); err != nil {
		if !attendance.IsClientError(err) {
			err = &attendance.StoreError{Op: "save tenant settings", Err: err}
		}
		h.writeServiceError(w, r, err)
		return
	}

	LoggerFrom(r.Context()).Info("tenant settings updated")
	writeJSON(w, http.StatusOK, toSettingsDTO(settings))
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Health handles GET /healthz (liveness).
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. It fails while the store cannot be reached.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			LoggerFrom(r.Context()).Warn("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error:     "store unavailable",
				Code:      "not_ready",
				Retryable: true,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 itself and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, "validation_failed",
				fmt.Sprintf("field %s failed on %s", fe.Namespace(), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// writeServiceError maps attendance errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := LoggerFrom(r.Context())

	switch {
	case errors.Is(err, attendance.ErrLocationUnavailable):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     "Your location could not be determined. Enable location services and try again.",
			Code:      "location_unavailable",
			Retryable: true,
		})
	case attendance.IsRetryable(err):
		log.Warn("retryable failure", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:     "The punch could not be saved right now. Please try again.",
			Code:      "store_unavailable",
			Retryable: true,
		})
	case attendance.IsNotFound(err):
		writeError(w, http.StatusNotFound, "employee_not_found", err.Error())
	case attendance.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, attendance.ErrLedgerCorrupt):
		log.Error("corrupt day ledger", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "ledger_corrupt", "The day's punches are inconsistent. Contact your manager.")
	default:
		log.Error("unexpected error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
