package domain

import "errors"

var (
	// ErrInvalidCoordinates is returned when a latitude or longitude is out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrMalformedForecast is returned when a provider response lacks fields the
	// scoring depends on.
	ErrMalformedForecast = errors.New("malformed forecast")

	// ErrUnknownDistrict is returned for names outside the district list.
	ErrUnknownDistrict = errors.New("unknown district")
)
