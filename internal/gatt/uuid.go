package gatt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// UUID is a 128-bit Bluetooth attribute type.
//
// 16-bit and 32-bit SIG-assigned aliases are expanded onto the Bluetooth
// Base UUID, so UUID values are directly comparable with ==.
type UUID uuid.UUID

// baseUUID is the Bluetooth Base UUID (00000000-0000-1000-8000-00805F9B34FB).
var baseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// Well-known attribute types.
var (
	GAPServiceUUID  = UUID16(0x1800)
	GATTServiceUUID = UUID16(0x1801)

	DeviceNameUUID                = UUID16(0x2A00)
	AppearanceUUID                = UUID16(0x2A01)
	PeripheralPrivacyUUID         = UUID16(0x2A02)
	ReconnectionAddressUUID       = UUID16(0x2A03)
	PreferredConnParamsUUID       = UUID16(0x2A04)
	CentralAddressResolutionUUID  = UUID16(0x2AA6)
	ResolvablePrivateAddrOnlyUUID = UUID16(0x2AC9)
)

// UUID16 expands a 16-bit SIG alias onto the Bluetooth Base UUID.
func UUID16(v uint16) UUID {
	return UUID32(uint32(v))
}

// UUID32 expands a 32-bit SIG alias onto the Bluetooth Base UUID.
func UUID32(v uint32) UUID {
	u := baseUUID
	u[0] = byte(v >> 24)
	u[1] = byte(v >> 16)
	u[2] = byte(v >> 8)
	u[3] = byte(v)
	return UUID(u)
}

// ParseUUID parses a UUID in 16-bit ("1800", "0x1800"), 32-bit ("0000180a")
// or full 128-bit form.
func ParseUUID(s string) (UUID, error) {
	s = strings.TrimSpace(s)
	short := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	switch len(short) {
	case 4:
		v, err := strconv.ParseUint(short, 16, 16)
		if err != nil {
			return UUID{}, fmt.Errorf("%w: %q", ErrInvalidUUID, s)
		}
		return UUID16(uint16(v)), nil
	case 8:
		v, err := strconv.ParseUint(short, 16, 32)
		if err != nil {
			return UUID{}, fmt.Errorf("%w: %q", ErrInvalidUUID, s)
		}
		return UUID32(uint32(v)), nil
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: %q: %w", ErrInvalidUUID, s, err)
	}
	return UUID(u), nil
}

// MustParseUUID is like ParseUUID but panics on error. Intended for tests
// and package-level tables.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String returns the canonical lower-case 128-bit form.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// IsZero reports whether u is the all-zero UUID.
func (u UUID) IsZero() bool {
	return u == UUID{}
}

// Short returns the 16-bit alias of u. ok is false when u is not a 16-bit
// value on the Bluetooth Base UUID.
func (u UUID) Short() (v uint16, ok bool) {
	if u[0] != 0 || u[1] != 0 {
		return 0, false
	}
	for i := 4; i < len(u); i++ {
		if u[i] != baseUUID[i] {
			return 0, false
		}
	}
	return uint16(u[2])<<8 | uint16(u[3]), true
}

// MarshalText implements encoding.TextMarshaler.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Accepts every form ParseUUID does.
func (u *UUID) UnmarshalText(text []byte) error {
	parsed, err := ParseUUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
