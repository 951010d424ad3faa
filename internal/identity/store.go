package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-ble/internal/device"
	"github.com/nerrad567/gray-logic-ble/internal/gap"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/mqtt"
)

const (
	// ProtocolBLE is the protocol identifier carried in state messages.
	ProtocolBLE = mqtt.ProtocolBLE

	defaultWriteTimeout = 5 * time.Second
	defaultQoS          = 1
)

// Registry is the subset of the device registry the store writes through.
type Registry interface {
	SetDisplayName(ctx context.Context, id, name string) error
	SetAppearance(ctx context.Context, id string, appearance uint16) error
}

// Publisher sends state messages to the bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry records identity changes as time-series points.
type Telemetry interface {
	WriteIdentityName(deviceID, address, name string)
	WriteIdentityAppearance(deviceID, address string, appearance uint16, icon string)
}

// Logger is the logging interface used by the store.
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

// Options configures a Store. Only Registry is required.
type Options struct {
	Registry  Registry
	Publisher Publisher
	Telemetry Telemetry
	Logger    Logger

	// QoS for state messages. Zero selects the default of 1.
	QoS byte

	// WriteTimeout bounds each registry write. Default: 5 seconds.
	WriteTimeout time.Duration
}

// Store implements gap.IdentityStore.
type Store struct {
	registry     Registry
	publisher    Publisher
	telemetry    Telemetry
	logger       Logger
	qos          byte
	writeTimeout time.Duration

	namesStored      atomic.Uint64
	appearanceStored atomic.Uint64
	writeFailures    atomic.Uint64
}

var _ gap.IdentityStore = (*Store)(nil)

// NewStore creates a Store from opts.
func NewStore(opts Options) *Store {
	s := &Store{
		registry:     opts.Registry,
		publisher:    opts.Publisher,
		telemetry:    opts.Telemetry,
		logger:       opts.Logger,
		qos:          opts.QoS,
		writeTimeout: opts.WriteTimeout,
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.qos == 0 {
		s.qos = defaultQoS
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultWriteTimeout
	}
	return s
}

// SetDisplayName stores the name a device reports for itself.
// Names are trimmed and cut to device.MaxNameLength on a rune boundary;
// a name that is empty after trimming is ignored.
func (s *Store) SetDisplayName(dev gap.Device, name string) {
	name = truncateName(strings.TrimSpace(name), device.MaxNameLength)
	if name == "" {
		s.logger.Debug("ignoring empty device name", "device_id", dev.ID, "address", dev.Address)
		return
	}

	if !s.persist(dev, "name", func(ctx context.Context) error {
		return s.registry.SetDisplayName(ctx, dev.ID, name)
	}) {
		return
	}
	s.namesStored.Add(1)

	s.publish(dev, map[string]any{"name": name})
	if s.telemetry != nil {
		s.telemetry.WriteIdentityName(dev.ID, dev.Address, name)
	}
}

// SetAppearance stores a device's GAP appearance value.
func (s *Store) SetAppearance(dev gap.Device, appearance uint16) {
	if !s.persist(dev, "appearance", func(ctx context.Context) error {
		return s.registry.SetAppearance(ctx, dev.ID, appearance)
	}) {
		return
	}
	s.appearanceStored.Add(1)

	icon := device.AppearanceIcon(appearance)
	s.publish(dev, map[string]any{"appearance": appearance, "icon": icon})
	if s.telemetry != nil {
		s.telemetry.WriteIdentityAppearance(dev.ID, dev.Address, appearance, icon)
	}
}

// Stats holds store counters.
type Stats struct {
	NamesStored      uint64
	AppearanceStored uint64
	WriteFailures    uint64
}

// GetStats returns the store counters.
func (s *Store) GetStats() Stats {
	return Stats{
		NamesStored:      s.namesStored.Load(),
		AppearanceStored: s.appearanceStored.Load(),
		WriteFailures:    s.writeFailures.Load(),
	}
}

// persist runs write against the registry and reports whether it succeeded.
func (s *Store) persist(dev gap.Device, field string, write func(ctx context.Context) error) bool {
	if s.registry == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := write(ctx); err != nil {
		s.writeFailures.Add(1)
		if errors.Is(err, device.ErrDeviceNotFound) {
			s.logger.Warn("identity for unknown device", "device_id", dev.ID, "address", dev.Address, "field", field)
			return false
		}
		s.logger.Error("storing device identity", "device_id", dev.ID, "address", dev.Address, "field", field, "error", err)
		return false
	}
	return true
}

func (s *Store) publish(dev gap.Device, state map[string]any) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(NewStateMessage(dev.ID, dev.Address, state))
	if err != nil {
		s.logger.Error("marshalling identity state", "device_id", dev.ID, "error", err)
		return
	}

	topic := mqtt.Topics{}.BridgeState(ProtocolBLE, dev.Address)
	if err := s.publisher.Publish(topic, payload, s.qos, true); err != nil {
		s.logger.Warn("publishing identity state", "topic", topic, "error", err)
	}
}

// truncateName cuts name to at most limit bytes without splitting a rune.
func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
