// Package influxdb provides InfluxDB connectivity for the Gray Logic BLE bridge.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health monitoring.
//
// # Measurements
//
//   - ble_identity: one point per name or appearance a device reports
//     (tags device_id, address, field)
//   - ble_bridge: periodic bridge counters (tag bridge_id)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteIdentityName(dev.ID, dev.Address, "Speaker")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Write errors arrive asynchronously through SetOnError.
package influxdb
