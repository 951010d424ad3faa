package influxdb

import "errors"

// Sentinel errors for telemetry operations. Writes never return errors;
// failures of batched writes reach the SetOnError callback instead.
var (
	// ErrNotConnected is returned by HealthCheck before Connect or after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the server could not be reached or reported
	// itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when telemetry is turned off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
