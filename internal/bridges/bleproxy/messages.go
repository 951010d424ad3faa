package bleproxy

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-ble/internal/gatt"
)

// ConnectionState is the link state reported by a proxy.
type ConnectionState string

const (
	// StateConnected means the proxy holds an LE link to the device.
	StateConnected ConnectionState = "connected"

	// StateDisconnected means the link is gone.
	StateDisconnected ConnectionState = "disconnected"
)

// ConnectionMessage is sent from a proxy when a link comes up or goes down.
// Topic: graylogic/ble/proxy/{proxy_id}/connection
type ConnectionMessage struct {
	// Address is the device's BLE address.
	Address string `json:"address"`

	// AddressType is "public" or "random". Defaults to public.
	AddressType string `json:"address_type,omitempty"`

	// State is the new link state.
	State ConnectionState `json:"state"`

	// MTU is the negotiated ATT_MTU. Zero means unknown.
	MTU int `json:"mtu,omitempty"`
}

// ServicesMessage is sent from a proxy after service discovery.
// Topic: graylogic/ble/proxy/{proxy_id}/services
//
// The first message for a link completes discovery. Later messages add
// services; with Replace set the proxy's previous layout is discarded first.
type ServicesMessage struct {
	Address  string         `json:"address"`
	Replace  bool           `json:"replace,omitempty"`
	Services []ServiceEntry `json:"services"`
}

// ServiceEntry describes one discovered service.
type ServiceEntry struct {
	Start           uint16                `json:"start"`
	End             uint16                `json:"end"`
	UUID            gatt.UUID             `json:"uuid"`
	Secondary       bool                  `json:"secondary,omitempty"`
	Characteristics []CharacteristicEntry `json:"characteristics,omitempty"`
}

// CharacteristicEntry describes one characteristic declaration.
type CharacteristicEntry struct {
	Handle      uint16          `json:"handle"`
	ValueHandle uint16          `json:"value_handle"`
	Properties  gatt.Properties `json:"properties"`
	UUID        gatt.UUID       `json:"uuid"`
}

// Definition converts the entry into a database service definition.
func (e ServiceEntry) Definition() gatt.ServiceDefinition {
	def := gatt.ServiceDefinition{
		Handle:    e.Start,
		EndHandle: e.End,
		UUID:      e.UUID,
		Primary:   !e.Secondary,
	}
	if len(e.Characteristics) > 0 {
		def.Characteristics = make([]gatt.CharacteristicDefinition, 0, len(e.Characteristics))
		for _, c := range e.Characteristics {
			def.Characteristics = append(def.Characteristics, gatt.CharacteristicDefinition{
				Handle:      c.Handle,
				ValueHandle: c.ValueHandle,
				Properties:  c.Properties,
				UUID:        c.UUID,
			})
		}
	}
	return def
}

// ServiceRemovedMessage is sent from a proxy when a service disappears,
// typically after a Service Changed indication.
// Topic: graylogic/ble/proxy/{proxy_id}/service_removed
type ServiceRemovedMessage struct {
	Address string `json:"address"`
	Start   uint16 `json:"start"`
}

// ReadResponseMessage completes a read request.
// Topic: graylogic/ble/proxy/{proxy_id}/read_response
type ReadResponseMessage struct {
	Address string `json:"address"`

	// ID echoes ReadRequestMessage.ID.
	ID uint32 `json:"id"`

	// ECode is the ATT error code; zero on success.
	ECode uint8 `json:"ecode"`

	// Value is the attribute value, base64 encoded on the wire.
	Value []byte `json:"value,omitempty"`
}

// Read operations.
const (
	OpRead     = "read"
	OpReadBlob = "read_blob"
)

// ReadRequestMessage is sent from the bridge to a proxy.
// Topic: graylogic/ble/request/{proxy_id}/{address}
type ReadRequestMessage struct {
	ID        uint32    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Op        string    `json:"op"`
	Handle    uint16    `json:"handle"`
	Offset    uint16    `json:"offset,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the bridge is not operating correctly.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/ble
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Statistics is omitted from LWT messages.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of devices in the registry.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// Sessions is the number of open identity sessions.
	Sessions int `json:"sessions"`

	// Links is the number of proxy links the bridge is hosting.
	Links int `json:"links"`

	// ReadsSent counts read requests published to proxies.
	ReadsSent uint64 `json:"reads_sent"`

	// ReadsFailed counts identity reads that completed with an error.
	ReadsFailed uint64 `json:"reads_failed"`

	// ActivationFailures counts links whose identity session could not be
	// opened or bound.
	ActivationFailures uint64 `json:"activation_failures"`

	// InvalidMessages counts proxy messages that were dropped.
	InvalidMessages uint64 `json:"invalid_messages"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats BridgeStatistics, deviceCount int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Statistics:     &stats,
		DevicesManaged: deviceCount,
	}
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// The broker publishes it if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// validate checks that a services message can be applied.
func (m *ServicesMessage) validate() error {
	if m.Address == "" {
		return fmt.Errorf("%w: services message without address", ErrInvalidMessage)
	}
	for i, s := range m.Services {
		if s.Start == 0 || s.End < s.Start {
			return fmt.Errorf("%w: service %d has handle range %d-%d", ErrInvalidMessage, i, s.Start, s.End)
		}
		if s.UUID.IsZero() {
			return fmt.Errorf("%w: service %d has no uuid", ErrInvalidMessage, i)
		}
	}
	return nil
}
