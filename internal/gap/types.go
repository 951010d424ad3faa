package gap

import "github.com/nerrad567/gray-logic-ble/internal/gatt"

// Device identifies a tracked remote device.
type Device struct {
	// ID is the registry key; sessions are keyed by it.
	ID string

	// Address is the BLE address, used for logging and by identity stores.
	Address string
}

// IdentityStore receives decoded identity values. Implementations must not
// block the event loop for long and must not call back into the Registry.
type IdentityStore interface {
	SetDisplayName(dev Device, name string)
	SetAppearance(dev Device, appearance uint16)
}

// Database yields owned handles to an attribute database.
type Database interface {
	Acquire() *gatt.DBHandle
}

// Client yields owned handles to an attribute client.
type Client interface {
	Acquire() *gatt.ClientHandle
}

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopStore struct{}

func (noopStore) SetDisplayName(Device, string) {}
func (noopStore) SetAppearance(Device, uint16)  {}

// Stats holds counters for health reporting.
type Stats struct {
	Sessions          int
	ReadsIssued       uint64
	ReadsFailed       uint64
	DecodeErrors      uint64
	DuplicateBindings uint64
	NamesApplied      uint64
	AppearanceApplied uint64
}
