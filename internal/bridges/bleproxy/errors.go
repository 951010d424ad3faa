package bleproxy

import "errors"

// Domain errors for the BLE proxy bridge package.
var (
	// ErrInvalidMessage is returned when a proxy message cannot be decoded
	// or carries values that do not describe a valid attribute layout.
	ErrInvalidMessage = errors.New("bleproxy: invalid message")

	// ErrUnknownDevice is returned when a proxy message refers to a device
	// the bridge has no open link for.
	ErrUnknownDevice = errors.New("bleproxy: unknown device")

	// ErrNotConnected is returned when a request cannot be sent because the
	// MQTT connection is down.
	ErrNotConnected = errors.New("bleproxy: not connected to broker")

	// ErrUnknownProxy is returned when a message arrives from a proxy that
	// is not listed in the configuration.
	ErrUnknownProxy = errors.New("bleproxy: unknown proxy")
)
