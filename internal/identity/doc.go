// Package identity fans decoded GAP identity values out to the rest of
// Gray Logic.
//
// A Store implements gap.IdentityStore. Each value it receives is:
//
//  1. Persisted on the device record through the device registry
//  2. Published as a retained state message on graylogic/state/ble/{address}
//  3. Written to InfluxDB as a ble_identity point, when telemetry is enabled
//
// Every step is best-effort. Failures are logged and never reported back to
// the caller, because the identity-sync core has no way to act on them.
package identity
