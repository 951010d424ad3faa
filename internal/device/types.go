package device

import "time"

// Device is a BLE peripheral known to the bridge.
// This matches migrations/20260301_120000_ble_devices.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Link layer
	Address     string      `json:"address"`
	AddressType AddressType `json:"address_type"`

	// GAP identity. Appearance is nil until the device has reported one.
	Appearance *uint16 `json:"appearance,omitempty"`
	Icon       string  `json:"icon,omitempty"`

	// Metadata
	Manufacturer *string  `json:"manufacturer,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	// Health monitoring
	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// Pointer and slice fields are cloned so the cache can hand out copies.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Appearance != nil {
		v := *d.Appearance
		cpy.Appearance = &v
	}

	if d.Tags != nil {
		cpy.Tags = make([]string, len(d.Tags))
		copy(cpy.Tags, d.Tags)
	}

	// *string and *time.Time point at immutable values.
	return &cpy
}

// HasName reports whether the device has a name other than its address.
func (d *Device) HasName() bool {
	return d.Name != "" && d.Name != d.Address
}

// AddressType is the BLE address type.
type AddressType string

// AddressType constants.
const (
	AddressTypePublic AddressType = "public"
	AddressTypeRandom AddressType = "random"
)

// AllAddressTypes returns all valid address types.
func AllAddressTypes() []AddressType {
	return []AddressType{AddressTypePublic, AddressTypeRandom}
}

// HealthStatus represents the device health state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline   HealthStatus = "online"
	HealthStatusOffline  HealthStatus = "offline"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusOnline, HealthStatusOffline, HealthStatusDegraded, HealthStatusUnknown,
	}
}
