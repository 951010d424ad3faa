package gap

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-ble/internal/gatt"
)

// Domain errors for identity synchronisation.
var (
	// ErrDuplicateSession is returned by Open when the device is already tracked.
	ErrDuplicateSession = errors.New("gap: session already exists")

	// ErrSessionNotFound is returned by Close and Rebind for an untracked device.
	ErrSessionNotFound = errors.New("gap: session not found")

	// ErrInvalidDevice is returned when a device has no ID.
	ErrInvalidDevice = errors.New("gap: invalid device")

	// ErrInvalidBinding is returned by Rebind when the database or client is nil.
	ErrInvalidBinding = errors.New("gap: database and client are required")

	// ErrWatchRegistration is returned by Rebind when the database refuses the watch.
	ErrWatchRegistration = errors.New("gap: failed to register service watch")

	// ErrDuplicateServiceBinding marks a second GAP service seen while one is bound.
	ErrDuplicateServiceBinding = errors.New("gap: identity service already bound")

	// ErrReadFailure marks a read that failed or could not be queued.
	ErrReadFailure = errors.New("gap: read failed")

	// ErrMalformedPayload marks a value the decoder rejected.
	ErrMalformedPayload = errors.New("gap: malformed payload")
)

// ReadError carries the ATT error code of a failed identity read.
// Code is zero when the request could not be queued.
type ReadError struct {
	Field string
	Code  gatt.ATTError
}

func (e *ReadError) Error() string {
	if e.Code == gatt.ErrCodeNone {
		return fmt.Sprintf("gap: %s read not queued", e.Field)
	}
	return fmt.Sprintf("gap: %s read failed: %s (0x%02x)", e.Field, e.Code.String(), uint8(e.Code))
}

// Unwrap returns ErrReadFailure.
func (e *ReadError) Unwrap() error {
	return ErrReadFailure
}
