package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	// MeasurementIdentity records each name or appearance a device reports.
	MeasurementIdentity = "ble_identity"

	// MeasurementBridge records periodic bridge counters.
	MeasurementBridge = "ble_bridge"
)

// Identity field names. Used as the "field" tag so a query can select one
// kind of identity change.
const (
	IdentityFieldName       = "name"
	IdentityFieldAppearance = "appearance"
)

// BridgeStats is a snapshot of bridge counters for telemetry.
type BridgeStats struct {
	Sessions           int
	Links              int
	DevicesManaged     int
	ReadsSent          uint64
	ReadsFailed        uint64
	ActivationFailures uint64
	InvalidMessages    uint64
}

// WriteIdentityName records a device name change.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteIdentityName("3f0c...", "C0:98:E5:00:12:34", "Speaker")
func (c *Client) WriteIdentityName(deviceID, address, name string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(identityPoint(deviceID, address, IdentityFieldName,
		map[string]interface{}{"name": name}, time.Now()))
}

// WriteIdentityAppearance records a device appearance change. The icon
// derived from the appearance is stored next to the raw value.
func (c *Client) WriteIdentityAppearance(deviceID, address string, appearance uint16, icon string) {
	if !c.IsConnected() {
		return
	}
	fields := map[string]interface{}{
		"appearance": int64(appearance),
		"category":   int64(appearance >> 6),
	}
	if icon != "" {
		fields["icon"] = icon
	}
	c.writeAPI.WritePoint(identityPoint(deviceID, address, IdentityFieldAppearance, fields, time.Now()))
}

// WriteBridgeStats records a snapshot of bridge counters.
func (c *Client) WriteBridgeStats(bridgeID string, stats BridgeStats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(bridgePoint(bridgeID, stats, time.Now()))
}

func identityPoint(deviceID, address, field string, fields map[string]interface{}, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementIdentity,
		map[string]string{
			"device_id": deviceID,
			"address":   address,
			"field":     field,
		},
		fields,
		ts,
	)
}

func bridgePoint(bridgeID string, stats BridgeStats, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBridge,
		map[string]string{
			"bridge_id": bridgeID,
		},
		map[string]interface{}{
			"sessions":            int64(stats.Sessions),
			"links":               int64(stats.Links),
			"devices_managed":     int64(stats.DevicesManaged),
			"reads_sent":          stats.ReadsSent,
			"reads_failed":        stats.ReadsFailed,
			"activation_failures": stats.ActivationFailures,
			"invalid_messages":    stats.InvalidMessages,
		},
		ts,
	)
}
