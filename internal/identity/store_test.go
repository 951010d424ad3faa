package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-ble/internal/device"
	"github.com/nerrad567/gray-logic-ble/internal/gap"
)

type mockRegistry struct {
	mu          sync.Mutex
	names       map[string]string
	appearances map[string]uint16
	err         error
	deadlines   []bool
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		names:       make(map[string]string),
		appearances: make(map[string]uint16),
	}
}

func (m *mockRegistry) SetDisplayName(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := ctx.Deadline()
	m.deadlines = append(m.deadlines, ok)
	if m.err != nil {
		return m.err
	}
	m.names[id] = name
	return nil
}

func (m *mockRegistry) SetAppearance(ctx context.Context, id string, appearance uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := ctx.Deadline()
	m.deadlines = append(m.deadlines, ok)
	if m.err != nil {
		return m.err
	}
	m.appearances[id] = appearance
	return nil
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
	err      error
}

func (m *mockPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{topic, payload, qos, retained})
	return nil
}

type telemetryCall struct {
	deviceID   string
	address    string
	name       string
	appearance uint16
	icon       string
}

type mockTelemetry struct {
	names       []telemetryCall
	appearances []telemetryCall
}

func (m *mockTelemetry) WriteIdentityName(deviceID, address, name string) {
	m.names = append(m.names, telemetryCall{deviceID: deviceID, address: address, name: name})
}

func (m *mockTelemetry) WriteIdentityAppearance(deviceID, address string, appearance uint16, icon string) {
	m.appearances = append(m.appearances, telemetryCall{deviceID: deviceID, address: address, appearance: appearance, icon: icon})
}

type recordingLogger struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warnings = append(l.warnings, msg)
	l.mu.Unlock()
}
func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

var testDevice = gap.Device{ID: "dev-1", Address: "C0:98:E5:00:12:34"}

func newTestStore() (*Store, *mockRegistry, *mockPublisher, *mockTelemetry, *recordingLogger) {
	reg := newMockRegistry()
	pub := &mockPublisher{}
	tel := &mockTelemetry{}
	log := &recordingLogger{}
	s := NewStore(Options{
		Registry:  reg,
		Publisher: pub,
		Telemetry: tel,
		Logger:    log,
	})
	return s, reg, pub, tel, log
}

func decodeState(t *testing.T, payload []byte) StateMessage {
	t.Helper()
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal state message: %v", err)
	}
	return msg
}

func TestSetDisplayName(t *testing.T) {
	s, reg, pub, tel, _ := newTestStore()

	s.SetDisplayName(testDevice, "  Kitchen Speaker ")

	if got := reg.names["dev-1"]; got != "Kitchen Speaker" {
		t.Errorf("registry name = %q, want %q", got, "Kitchen Speaker")
	}
	if len(reg.deadlines) != 1 || !reg.deadlines[0] {
		t.Error("registry write should run with a deadline")
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	m := pub.messages[0]
	if m.topic != "graylogic/state/ble/C0:98:E5:00:12:34" {
		t.Errorf("topic = %q", m.topic)
	}
	if !m.retained {
		t.Error("state message should be retained")
	}
	if m.qos != 1 {
		t.Errorf("qos = %d, want 1", m.qos)
	}

	msg := decodeState(t, m.payload)
	if msg.DeviceID != "dev-1" || msg.Protocol != "ble" || msg.Address != testDevice.Address {
		t.Errorf("unexpected message header: %+v", msg)
	}
	if msg.State["name"] != "Kitchen Speaker" {
		t.Errorf("state name = %v", msg.State["name"])
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	if len(tel.names) != 1 || tel.names[0].name != "Kitchen Speaker" || tel.names[0].deviceID != "dev-1" {
		t.Errorf("telemetry names = %+v", tel.names)
	}
	if got := s.GetStats().NamesStored; got != 1 {
		t.Errorf("NamesStored = %d, want 1", got)
	}
}

func TestSetDisplayName_Empty(t *testing.T) {
	s, reg, pub, tel, _ := newTestStore()

	s.SetDisplayName(testDevice, "   ")

	if len(reg.names) != 0 || len(pub.messages) != 0 || len(tel.names) != 0 {
		t.Error("an empty name should not be stored or published")
	}
}

func TestSetDisplayName_Truncates(t *testing.T) {
	s, reg, _, _, _ := newTestStore()

	// 'é' is two bytes, so 200 of them cross the limit mid-rune.
	long := strings.Repeat("é", 200)
	s.SetDisplayName(testDevice, long)

	got := reg.names["dev-1"]
	if len(got) > device.MaxNameLength {
		t.Errorf("len = %d, want <= %d", len(got), device.MaxNameLength)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated name should remain valid UTF-8")
	}
	if got != strings.Repeat("é", device.MaxNameLength/2) {
		t.Errorf("unexpected truncation: %d bytes", len(got))
	}
}

func TestSetDisplayName_RegistryErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantWarn  int
		wantError int
	}{
		{"unknown device", device.ErrDeviceNotFound, 1, 0},
		{"wrapped unknown device", errors.Join(errors.New("lookup"), device.ErrDeviceNotFound), 1, 0},
		{"storage failure", errors.New("disk I/O error"), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, reg, pub, tel, log := newTestStore()
			reg.err = tt.err

			s.SetDisplayName(testDevice, "Lamp")

			if len(pub.messages) != 0 || len(tel.names) != 0 {
				t.Error("nothing should be published after a failed write")
			}
			if len(log.warnings) != tt.wantWarn || len(log.errors) != tt.wantError {
				t.Errorf("warnings=%v errors=%v", log.warnings, log.errors)
			}
			if got := s.GetStats().WriteFailures; got != 1 {
				t.Errorf("WriteFailures = %d, want 1", got)
			}
		})
	}
}

func TestSetAppearance(t *testing.T) {
	s, reg, pub, tel, _ := newTestStore()

	s.SetAppearance(testDevice, 0x03C1)

	if got := reg.appearances["dev-1"]; got != 0x03C1 {
		t.Errorf("registry appearance = %#04x, want 0x03c1", got)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	msg := decodeState(t, pub.messages[0].payload)
	// JSON numbers decode as float64.
	if msg.State["appearance"] != float64(0x03C1) {
		t.Errorf("state appearance = %v", msg.State["appearance"])
	}
	if msg.State["icon"] != "input-keyboard" {
		t.Errorf("state icon = %v", msg.State["icon"])
	}

	if len(tel.appearances) != 1 {
		t.Fatalf("telemetry appearances = %d, want 1", len(tel.appearances))
	}
	if c := tel.appearances[0]; c.appearance != 0x03C1 || c.icon != "input-keyboard" || c.address != testDevice.Address {
		t.Errorf("telemetry call = %+v", c)
	}
	if got := s.GetStats().AppearanceStored; got != 1 {
		t.Errorf("AppearanceStored = %d, want 1", got)
	}
}

func TestSetAppearance_Unknown(t *testing.T) {
	s, reg, pub, _, _ := newTestStore()

	s.SetAppearance(testDevice, 0)

	if _, ok := reg.appearances["dev-1"]; !ok {
		t.Error("appearance 0 is a valid value and should be stored")
	}
	msg := decodeState(t, pub.messages[0].payload)
	if msg.State["icon"] != "" {
		t.Errorf("icon = %v, want empty", msg.State["icon"])
	}
}

func TestPublishFailureIsLogged(t *testing.T) {
	s, reg, pub, tel, log := newTestStore()
	pub.err = errors.New("not connected")

	s.SetDisplayName(testDevice, "Lamp")

	if reg.names["dev-1"] != "Lamp" {
		t.Error("registry write should succeed independently of the bus")
	}
	if len(tel.names) != 1 {
		t.Error("telemetry should still be written when publishing fails")
	}
	if len(log.warnings) != 1 {
		t.Errorf("warnings = %v, want one", log.warnings)
	}
}

func TestOptionalCollaborators(t *testing.T) {
	reg := newMockRegistry()
	s := NewStore(Options{Registry: reg, QoS: 2, WriteTimeout: time.Second})

	s.SetDisplayName(testDevice, "Lamp")
	s.SetAppearance(testDevice, 0x0040)

	if reg.names["dev-1"] != "Lamp" || reg.appearances["dev-1"] != 0x0040 {
		t.Error("registry should be written without publisher or telemetry")
	}
	if s.qos != 2 || s.writeTimeout != time.Second {
		t.Errorf("options not applied: qos=%d timeout=%v", s.qos, s.writeTimeout)
	}
}

func TestNilRegistry(t *testing.T) {
	pub := &mockPublisher{}
	s := NewStore(Options{Publisher: pub})

	s.SetDisplayName(testDevice, "Lamp")

	if len(pub.messages) != 0 {
		t.Error("nothing should be published without a registry")
	}
}

func TestTruncateName(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 5, "abcde"},
		{"mid rune", "ab€", 4, "ab"},
		{"rune boundary", "ab€", 5, "ab€"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateName(tt.in, tt.limit); got != tt.want {
				t.Errorf("truncateName(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}
