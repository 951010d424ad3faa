package bleproxy

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-ble/internal/gatt"
)

func TestServicesMessage_Unmarshal(t *testing.T) {
	payload := `{
		"address": "C0:98:E5:00:12:34",
		"services": [
			{"start": 1, "end": 5, "uuid": "1800", "characteristics": [
				{"handle": 2, "value_handle": 3, "properties": 2, "uuid": "0x2a00"},
				{"handle": 4, "value_handle": 5, "properties": 2, "uuid": "00002a01-0000-1000-8000-00805f9b34fb"}
			]},
			{"start": 6, "end": 9, "uuid": "180f", "secondary": true}
		]
	}`

	var msg ServicesMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := msg.validate(); err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if msg.Replace {
		t.Error("Replace should default to false")
	}

	def := msg.Services[0].Definition()
	if def.Handle != 1 || def.EndHandle != 5 || def.UUID != gatt.GAPServiceUUID || !def.Primary {
		t.Errorf("definition = %+v", def)
	}
	if len(def.Characteristics) != 2 {
		t.Fatalf("characteristics = %d, want 2", len(def.Characteristics))
	}
	if c := def.Characteristics[0]; c.UUID != gatt.DeviceNameUUID || c.ValueHandle != 3 || c.Properties != gatt.PropRead {
		t.Errorf("characteristic[0] = %+v", c)
	}
	if def.Characteristics[1].UUID != gatt.AppearanceUUID {
		t.Errorf("characteristic[1] uuid = %s", def.Characteristics[1].UUID)
	}

	if msg.Services[1].Definition().Primary {
		t.Error("secondary service should not be primary")
	}
}

func TestServicesMessage_InvalidUUID(t *testing.T) {
	payload := `{"address": "C0:98:E5:00:12:34", "services": [{"start": 1, "end": 5, "uuid": "zzzz"}]}`
	var msg ServicesMessage
	if err := json.Unmarshal([]byte(payload), &msg); err == nil {
		t.Error("expected an error for a malformed uuid")
	}
}

func TestServicesMessage_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  ServicesMessage
	}{
		{"no address", ServicesMessage{Services: []ServiceEntry{gapService()}}},
		{"zero start", ServicesMessage{Address: testAddress, Services: []ServiceEntry{{Start: 0, End: 5, UUID: gatt.GAPServiceUUID}}}},
		{"inverted range", ServicesMessage{Address: testAddress, Services: []ServiceEntry{{Start: 9, End: 5, UUID: gatt.GAPServiceUUID}}}},
		{"no uuid", ServicesMessage{Address: testAddress, Services: []ServiceEntry{{Start: 1, End: 5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.validate()
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("validate() error = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestReadResponseMessage_Base64(t *testing.T) {
	var msg ReadResponseMessage
	payload := `{"address": "C0:98:E5:00:12:34", "id": 7, "ecode": 0, "value": "TGFtcA=="}`
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.ID != 7 || string(msg.Value) != "Lamp" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestNewHealthMessage(t *testing.T) {
	stats := BridgeStatistics{Sessions: 2, ReadsSent: 10}
	msg := NewHealthMessage("ble-bridge-01", "1.2.3", HealthHealthy, stats, 5, testStart())

	if msg.Bridge != "ble-bridge-01" || msg.Version != "1.2.3" || msg.Status != HealthHealthy {
		t.Errorf("msg = %+v", msg)
	}
	if msg.DevicesManaged != 5 || msg.Statistics == nil || msg.Statistics.ReadsSent != 10 {
		t.Errorf("msg = %+v", msg)
	}
	if msg.UptimeSeconds < 60 {
		t.Errorf("UptimeSeconds = %d, want >= 60", msg.UptimeSeconds)
	}
}

func TestNewLWTMessage(t *testing.T) {
	msg := NewLWTMessage("ble-bridge-01")
	if msg.Status != HealthOffline || msg.Reason != "unexpected_disconnect" || msg.Statistics != nil {
		t.Errorf("msg = %+v", msg)
	}
}
