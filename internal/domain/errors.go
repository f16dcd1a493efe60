package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry marks a region boundary that cannot be rasterized.
	// The region is excluded from the run; other regions proceed.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidConfiguration marks run parameters that are zero, negative or
	// not finite. It is returned before any computation starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDegenerateProjection marks a latitude where the equirectangular
	// approximation breaks down (cos(lat) close to zero).
	ErrDegenerateProjection = errors.New("degenerate projection")

	// ErrInvalidFacility marks a facility with non-finite coordinates.
	ErrInvalidFacility = errors.New("invalid facility")

	// ErrInvalidWeight marks a region whose population weight is negative or
	// not finite. Like ErrInvalidGeometry it only excludes that region.
	ErrInvalidWeight = errors.New("invalid region weight")
)

// RegionError records why a region was left out of a run.
type RegionError struct {
	Region string
	Err    error
}

func (e RegionError) Error() string {
	return fmt.Sprintf("region %q: %v", e.Region, e.Err)
}

func (e RegionError) Unwrap() error { return e.Err }

// MarshalJSON renders the error as a message so results stay serializable.
func (e RegionError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Region string `json:"region"`
		Error  string `json:"error"`
	}{Region: e.Region, Error: msg})
}
