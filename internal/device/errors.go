package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID or address does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose ID or address already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidAddress is returned when a BLE address is malformed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidAddressType is returned when an address type is not public or random.
	ErrInvalidAddressType = errors.New("device: invalid address type")

	// ErrInvalidHealthStatus is returned when a health status is not recognised.
	ErrInvalidHealthStatus = errors.New("device: invalid health status")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("device: invalid slug")

	// ErrInvalidTag is returned when a tag is too long or there are too many.
	ErrInvalidTag = errors.New("device: invalid tag")
)
