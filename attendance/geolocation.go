package attendance

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// GEOLOCATION - External collaborators around the GPS fix
// =============================================================================

// Geolocation supplies the device's current fix. It may fail or time out.
type Geolocation interface {
	Capture(ctx context.Context) (Location, error)
}

// Geocoder turns coordinates into a street address. Best-effort only.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// CaptureLocation asks geo for a fix within timeout. Any failure, including
// a fix without usable coordinates, is reported as ErrLocationUnavailable so
// the caller never proceeds with a zeroed location.
func CaptureLocation(ctx context.Context, geo Geolocation, timeout time.Duration) (Location, error) {
	if geo == nil {
		return Location{}, fmt.Errorf("%w: no geolocation provider", ErrLocationUnavailable)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	loc, err := geo.Capture(ctx)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	if !loc.HasValidCoordinates() {
		return Location{}, fmt.Errorf("%w: provider returned invalid coordinates", ErrLocationUnavailable)
	}
	return loc, nil
}

// ResolveAddress fills loc.Address when it is empty. Geocoder failures
// degrade to the raw coordinates; they never fail the punch.
func ResolveAddress(ctx context.Context, geocoder Geocoder, loc Location, timeout time.Duration) Location {
	if loc.Address != "" || !loc.HasValidCoordinates() {
		return loc
	}
	if geocoder == nil {
		loc.Address = loc.Coordinates()
		return loc
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	address, err := geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil || address == "" {
		loc.Address = loc.Coordinates()
		return loc
	}
	loc.Address = address
	return loc
}
