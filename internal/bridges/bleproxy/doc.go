// Package bleproxy bridges BLE proxy nodes on the Gray Logic MQTT bus to the
// GAP identity core.
//
// A proxy is a small device (typically an ESP32) that holds LE links to
// nearby peripherals, discovers their attribute layout and performs reads on
// request. The bridge mirrors each link's layout into a local gatt.DB, hands
// the database and a gatt.Client to a gap session, and carries the
// session's reads back to the proxy.
//
// # Architecture
//
//	┌─────────────┐   MQTT   ┌──────────────┐          ┌─────────────┐
//	│  BLE proxy  │◄────────►│    Bridge    │─────────►│ gap.Registry│
//	│   nodes     │          │  (this pkg)  │  gatt    │ (identity)  │
//	└─────────────┘          └──────────────┘          └─────────────┘
//
// # Topics
//
//	graylogic/ble/proxy/{proxy_id}/connection       proxy → bridge
//	graylogic/ble/proxy/{proxy_id}/services         proxy → bridge
//	graylogic/ble/proxy/{proxy_id}/service_removed  proxy → bridge
//	graylogic/ble/proxy/{proxy_id}/read_response    proxy → bridge
//	graylogic/ble/request/{proxy_id}/{address}      bridge → proxy
//	graylogic/health/ble                            bridge → core (retained)
//
// # Link lifecycle
//
// A "connected" message seeds the device in the registry and opens a gap
// session. The first "services" message completes discovery: the client is
// marked ready and the session is bound, which scans for the GAP service.
// Later services messages add to the layout and reach the session through
// its watch; a message with replace set clears the layout and rebinds.
// "disconnected" closes the session and then the client.
//
// # Thread Safety
//
// MQTT handlers only decode messages. Everything that touches a link, its
// database or the session registry is posted to the shared gatt.Loop.
package bleproxy
