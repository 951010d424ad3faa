package identity

import "time"

// StateMessage carries a device's identity to the rest of the system.
// Topic: graylogic/state/ble/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the value was read (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State holds the identity fields that changed:
	//   {"name": "Kitchen Speaker"}
	//   {"appearance": 961, "icon": "input-keyboard"}
	State map[string]any `json:"state"`

	// Protocol is always "ble".
	Protocol string `json:"protocol"`

	// Address is the device's BLE address.
	Address string `json:"address"`
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, address string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  ProtocolBLE,
		Address:   address,
	}
}
