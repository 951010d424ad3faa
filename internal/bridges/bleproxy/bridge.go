package bleproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-ble/internal/device"
	"github.com/nerrad567/gray-logic-ble/internal/gap"
	"github.com/nerrad567/gray-logic-ble/internal/gatt"
	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// registryTimeout bounds each device registry call made from the loop.
	registryTimeout = 5 * time.Second

	// shutdownTimeout bounds link teardown during Stop.
	shutdownTimeout = 10 * time.Second

	// minExpiryInterval is the fastest the read expiry sweep runs.
	minExpiryInterval = 500 * time.Millisecond
)

// Bridge hosts identity sessions for devices reached through BLE proxy
// nodes. It handles:
//   - Mirroring each link's attribute layout into a local gatt.DB
//   - Carrying attribute reads to the proxy and feeding responses back
//   - Opening, rebinding and closing gap sessions as links change
//   - Health reporting and graceful shutdown
//
// Every proxy message is handled on the gatt.Loop shared with the session
// registry, so the identity core never runs concurrently with itself.
type Bridge struct {
	cfg       *Config
	mqtt      MQTTClient
	loop      *gatt.Loop
	sessions  SessionHost
	registry  DeviceRegistry
	health    *HealthReporter
	deviceIdx map[string]DeviceConfig
	qos       byte
	logger    Logger

	// links is owned by the loop goroutine.
	links map[string]*link

	linkCount          atomic.Int64
	readsSent          atomic.Uint64
	activationFailures atomic.Uint64
	invalidMessages    atomic.Uint64
	running            atomic.Bool

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// link is one proxy connection to one device.
type link struct {
	proxyID string
	device  gap.Device
	db      *gatt.DB
	client  *gatt.Client
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// SessionHost is the identity session registry. Satisfied by *gap.Registry.
// Open, Close and Rebind are only called on the loop.
type SessionHost interface {
	Open(dev gap.Device) error
	Close(dev gap.Device) error
	Rebind(dev gap.Device, db gap.Database, client gap.Client) error
	Stats() gap.Stats
}

// DeviceRegistry provides device records. Satisfied by *device.Registry.
// It is optional; without it a device's address doubles as its ID.
type DeviceRegistry interface {
	// CreateDeviceIfNotExists returns the device at seed.Address, creating
	// it from seed the first time the address is seen.
	CreateDeviceIfNotExists(ctx context.Context, seed *device.Device) (*device.Device, bool, error)

	// SetDeviceHealth records whether a device is reachable.
	SetDeviceHealth(ctx context.Context, id string, status device.HealthStatus) error

	// GetDeviceCount returns the number of registered devices.
	GetDeviceCount() int
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded bridge configuration.
	Config *Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Loop runs every session operation. The caller runs and stops it.
	Loop *gatt.Loop

	// Sessions is the identity session registry driven by the bridge.
	Sessions SessionHost

	// Registry is optional device registry for seeding and health.
	Registry DeviceRegistry

	// Telemetry is optional; bridge statistics are written with each
	// health report when set.
	Telemetry StatsWriter

	// Version is reported in health messages.
	Version string

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Loop == nil {
		return nil, fmt.Errorf("event loop is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTTClient,
		loop:      opts.Loop,
		sessions:  opts.Sessions,
		registry:  opts.Registry,
		deviceIdx: opts.Config.BuildDeviceIndex(),
		qos:       byte(opts.Config.MQTT.QoS),
		logger:    logger,
		links:     make(map[string]*link),
		done:      make(chan struct{}),
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Source:    b,
		Telemetry: opts.Telemetry,
	})
	b.health.SetLogger(logger)

	return b, nil
}

// Start subscribes to proxy events and starts health reporting and the
// read expiry sweep.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := mqtt.Topics{}.AllProxyEvents()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to proxy events: %w", err)
	}
	b.logger.Info("subscribed to proxy events", "topic", topic)

	b.running.Store(true)

	b.wg.Add(1)
	go b.expiryLoop(ctx)

	b.health.Start(ctx)

	b.logger.Info("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"proxies", len(b.cfg.Proxies),
		"configured_devices", len(b.deviceIdx))

	return nil
}

// Stop gracefully shuts down the bridge. Open links are closed on the loop,
// so the loop must still be running. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		if err := b.mqtt.Unsubscribe(mqtt.Topics{}.AllProxyEvents()); err != nil {
			b.logger.Debug("unsubscribe from proxy events", "error", err)
		}

		b.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := b.loop.Do(ctx, func() error {
			b.closeAllLinks("bridge stopping")
			return nil
		})
		if err != nil {
			b.logger.Warn("closing links on shutdown", "error", err)
		}

		b.running.Store(false)
		b.health.Stop()

		b.logger.Info("bridge stopped")
	})
}

// handleMQTTMessage decodes a proxy event and hands it to the loop.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	proxyID, event, ok := mqtt.ParseProxyEvent(topic)
	if !ok {
		b.dropMessage("unrecognised proxy topic", fmt.Errorf("%w: topic %s", ErrInvalidMessage, topic))
		return
	}
	if !b.cfg.AcceptsProxy(proxyID) {
		b.dropMessage("message from unlisted proxy", fmt.Errorf("%w: %s", ErrUnknownProxy, proxyID))
		return
	}

	var handle func()
	switch event {
	case mqtt.ProxyEventConnection:
		var msg ConnectionMessage
		if err := decodeMessage(payload, &msg, &msg.Address); err != nil {
			b.dropMessage("invalid connection message", err, "proxy_id", proxyID)
			return
		}
		handle = func() { b.handleConnection(proxyID, msg) }

	case mqtt.ProxyEventServices:
		var msg ServicesMessage
		if err := decodeMessage(payload, &msg, &msg.Address); err != nil {
			b.dropMessage("invalid services message", err, "proxy_id", proxyID)
			return
		}
		if err := msg.validate(); err != nil {
			b.dropMessage("invalid services message", err, "proxy_id", proxyID)
			return
		}
		handle = func() { b.handleServices(proxyID, msg) }

	case mqtt.ProxyEventServiceRemoved:
		var msg ServiceRemovedMessage
		if err := decodeMessage(payload, &msg, &msg.Address); err != nil {
			b.dropMessage("invalid service removed message", err, "proxy_id", proxyID)
			return
		}
		handle = func() { b.handleServiceRemoved(proxyID, msg) }

	case mqtt.ProxyEventReadResponse:
		var msg ReadResponseMessage
		if err := decodeMessage(payload, &msg, &msg.Address); err != nil {
			b.dropMessage("invalid read response", err, "proxy_id", proxyID)
			return
		}
		handle = func() { b.handleReadResponse(proxyID, msg) }

	default:
		b.logger.Debug("ignoring proxy event", "proxy_id", proxyID, "event", event)
		return
	}

	if !b.loop.Post(handle) {
		b.logger.Debug("event loop stopped, dropping proxy message", "proxy_id", proxyID, "event", event)
	}
}

// decodeMessage unmarshals payload into v and normalises the address field.
func decodeMessage(payload []byte, v any, address *string) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	addr, err := device.NormaliseAddress(*address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	*address = addr
	return nil
}

func (b *Bridge) dropMessage(msg string, err error, keysAndValues ...any) {
	b.invalidMessages.Add(1)
	b.logger.Warn(msg, append(keysAndValues, "error", err)...)
}

func (b *Bridge) handleConnection(proxyID string, msg ConnectionMessage) {
	switch msg.State {
	case StateConnected:
		b.openLink(proxyID, msg)
	case StateDisconnected:
		l, err := b.linkFor(proxyID, msg.Address)
		if err != nil {
			b.logger.Debug("disconnect for untracked link", "proxy_id", proxyID, "address", msg.Address, "error", err)
			return
		}
		b.closeLink(l, "disconnected")
	default:
		b.dropMessage("invalid connection state",
			fmt.Errorf("%w: state %q", ErrInvalidMessage, msg.State),
			"proxy_id", proxyID, "address", msg.Address)
	}
}

// openLink starts hosting a newly connected device.
func (b *Bridge) openLink(proxyID string, msg ConnectionMessage) {
	if old, ok := b.links[msg.Address]; ok {
		b.logger.Info("replacing existing link",
			"address", msg.Address, "old_proxy_id", old.proxyID, "proxy_id", proxyID)
		b.closeLink(old, "superseded")
	}

	dev, err := b.seedDevice(msg)
	if err != nil {
		b.activationFailures.Add(1)
		b.logger.Error("registering device", "address", msg.Address, "error", err)
		return
	}

	mtu := msg.MTU
	if mtu < gatt.DefaultMTU {
		mtu = b.cfg.Bridge.DefaultMTU
	}

	l := &link{
		proxyID: proxyID,
		device:  gap.Device{ID: dev.ID, Address: msg.Address},
		db:      gatt.NewDB(),
	}
	l.client = gatt.NewClient(newProxyTransport(b.mqtt, proxyID, msg.Address, b.qos, mtu, &b.readsSent))

	if err := b.sessions.Open(l.device); err != nil {
		b.activationFailures.Add(1)
		b.logger.Error("opening identity session", "device_id", dev.ID, "address", msg.Address, "error", err)
		l.client.Close()
		return
	}

	b.links[msg.Address] = l
	b.linkCount.Store(int64(len(b.links)))
	b.setHealth(dev.ID, device.HealthStatusOnline)

	b.logger.Info("device connected",
		"device_id", dev.ID, "address", msg.Address, "proxy_id", proxyID, "mtu", mtu)
}

// seedDevice returns the registry record for the connecting device,
// creating it on first sight.
func (b *Bridge) seedDevice(msg ConnectionMessage) (*device.Device, error) {
	if b.registry == nil {
		return &device.Device{ID: msg.Address, Address: msg.Address}, nil
	}

	seed := &device.Device{
		Address:     msg.Address,
		AddressType: device.AddressType(msg.AddressType),
	}
	if device.ValidateAddressType(seed.AddressType) != nil {
		seed.AddressType = ""
	}
	if meta, ok := b.deviceIdx[msg.Address]; ok {
		if meta.AddressType != "" {
			seed.AddressType = device.AddressType(meta.AddressType)
		}
		if meta.Manufacturer != "" {
			manufacturer := meta.Manufacturer
			seed.Manufacturer = &manufacturer
		}
		seed.Tags = append([]string(nil), meta.Tags...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()

	dev, created, err := b.registry.CreateDeviceIfNotExists(ctx, seed)
	if err != nil {
		return nil, err
	}
	if created {
		b.logger.Info("device registered", "device_id", dev.ID, "address", dev.Address)
	}
	return dev, nil
}

func (b *Bridge) handleServices(proxyID string, msg ServicesMessage) {
	l, err := b.linkFor(proxyID, msg.Address)
	if err != nil {
		b.dropMessage("services for untracked link", err, "proxy_id", proxyID)
		return
	}

	if msg.Replace {
		l.client.SetReady(false)
		l.db.Clear()
	}

	for _, entry := range msg.Services {
		if _, err := l.db.AddService(entry.Definition()); err != nil {
			b.invalidMessages.Add(1)
			b.logger.Warn("rejected service",
				"address", msg.Address, "start", entry.Start, "uuid", entry.UUID.String(), "error", err)
		}
	}

	if l.client.Ready() {
		return
	}

	// Discovery is complete once the first layout arrives.
	l.client.SetReady(true)
	if err := b.sessions.Rebind(l.device, l.db, l.client); err != nil {
		b.activationFailures.Add(1)
		b.logger.Error("binding identity session", "device_id", l.device.ID, "address", msg.Address, "error", err)
		return
	}
	b.logger.Debug("link ready", "device_id", l.device.ID, "services", l.db.ServiceCount())
}

func (b *Bridge) handleServiceRemoved(proxyID string, msg ServiceRemovedMessage) {
	l, err := b.linkFor(proxyID, msg.Address)
	if err != nil {
		b.dropMessage("service removal for untracked link", err, "proxy_id", proxyID)
		return
	}
	if !l.db.RemoveService(msg.Start) {
		b.logger.Debug("removed service not found", "address", msg.Address, "start", msg.Start)
	}
}

func (b *Bridge) handleReadResponse(proxyID string, msg ReadResponseMessage) {
	l, err := b.linkFor(proxyID, msg.Address)
	if err != nil {
		b.logger.Debug("read response for untracked link", "proxy_id", proxyID, "address", msg.Address)
		return
	}
	if err := l.client.Deliver(msg.ID, gatt.ATTError(msg.ECode), msg.Value); err != nil {
		// Responses to cancelled or expired requests land here.
		b.logger.Debug("discarding read response", "address", msg.Address, "id", msg.ID, "error", err)
	}
}

// linkFor returns the link for address if proxyID owns it.
func (b *Bridge) linkFor(proxyID, address string) (*link, error) {
	l, ok := b.links[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}
	if l.proxyID != proxyID {
		return nil, fmt.Errorf("%w: %s is linked through proxy %s", ErrUnknownDevice, address, l.proxyID)
	}
	return l, nil
}

// closeLink stops hosting a device. The session is closed before the client
// so reads still in flight are cancelled rather than failed.
func (b *Bridge) closeLink(l *link, reason string) {
	if err := b.sessions.Close(l.device); err != nil && !errors.Is(err, gap.ErrSessionNotFound) {
		b.logger.Warn("closing identity session", "device_id", l.device.ID, "error", err)
	}
	l.client.Close()

	delete(b.links, l.device.Address)
	b.linkCount.Store(int64(len(b.links)))
	b.setHealth(l.device.ID, device.HealthStatusOffline)

	b.logger.Info("device disconnected",
		"device_id", l.device.ID, "address", l.device.Address, "proxy_id", l.proxyID, "reason", reason)
}

func (b *Bridge) closeAllLinks(reason string) {
	for _, l := range b.links {
		b.closeLink(l, reason)
	}
}

func (b *Bridge) setHealth(id string, status device.HealthStatus) {
	if b.registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := b.registry.SetDeviceHealth(ctx, id, status); err != nil {
		b.logger.Warn("updating device health", "device_id", id, "status", status, "error", err)
	}
}

// expiryLoop periodically fails reads the proxies never answered.
func (b *Bridge) expiryLoop(ctx context.Context) {
	defer b.wg.Done()

	timeout := b.cfg.GetReadTimeout()
	interval := timeout / 2
	if interval < minExpiryInterval {
		interval = minExpiryInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.loop.Post(func() { b.expireReads(timeout) })
		}
	}
}

// expireReads runs on the loop.
func (b *Bridge) expireReads(timeout time.Duration) {
	for _, l := range b.links {
		if n := l.client.Expire(timeout); n > 0 {
			b.logger.Debug("read requests timed out", "address", l.device.Address, "count", n)
		}
	}
}

// Statistics returns the bridge counters. Safe to call from any goroutine.
func (b *Bridge) Statistics() BridgeStatistics {
	gs := b.sessions.Stats()
	return BridgeStatistics{
		Sessions:           gs.Sessions,
		Links:              int(b.linkCount.Load()),
		ReadsSent:          b.readsSent.Load(),
		ReadsFailed:        gs.ReadsFailed,
		ActivationFailures: b.activationFailures.Load(),
		InvalidMessages:    b.invalidMessages.Load(),
	}
}

// DevicesManaged returns the number of registered devices, or the number
// of open links when running without a registry.
func (b *Bridge) DevicesManaged() int {
	if b.registry == nil {
		return int(b.linkCount.Load())
	}
	return b.registry.GetDeviceCount()
}

// Running reports whether the bridge is started and its loop is alive.
func (b *Bridge) Running() bool {
	if !b.running.Load() {
		return false
	}
	select {
	case <-b.loop.Done():
		return false
	default:
		return true
	}
}
