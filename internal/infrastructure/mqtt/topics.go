package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes on the Gray Logic bus.
//
// Bridge topics use the flat scheme: graylogic/{category}/{protocol}/{address}.
// BLE proxy nodes publish link events under graylogic/ble/proxy/{proxy_id}
// and take attribute requests on graylogic/ble/request/{proxy_id}/{address}.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// TopicPrefixBLE is the base for traffic between the bridge and BLE proxy nodes.
	TopicPrefixBLE = "graylogic/ble"
)

// ProtocolBLE is the protocol segment used in flat bridge topics.
const ProtocolBLE = "ble"

// Proxy event kinds published by BLE proxy nodes.
const (
	ProxyEventConnection     = "connection"
	ProxyEventServices       = "services"
	ProxyEventServiceRemoved = "service_removed"
	ProxyEventReadResponse   = "read_response"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState(mqtt.ProtocolBLE, "C0:98:E5:00:12:34")
//	// Returns: "graylogic/state/ble/C0:98:E5:00:12:34"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: graylogic/state/ble/C0:98:E5:00:12:34
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/ble
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// =============================================================================
// BLE Proxy Topics
// =============================================================================

// ProxyEvent returns the topic a proxy node publishes an event kind on.
//
// Example: graylogic/ble/proxy/hall-proxy/services
func (Topics) ProxyEvent(proxyID, event string) string {
	return fmt.Sprintf("%s/proxy/%s/%s", TopicPrefixBLE, proxyID, event)
}

// ProxyRequest returns the topic for attribute requests to one device behind a proxy.
//
// Example: graylogic/ble/request/hall-proxy/C0:98:E5:00:12:34
func (Topics) ProxyRequest(proxyID, address string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixBLE, proxyID, address)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllProxyEvents returns a pattern matching every proxy node event.
//
// Pattern: graylogic/ble/proxy/+/+
func (Topics) AllProxyEvents() string {
	return fmt.Sprintf("%s/proxy/+/+", TopicPrefixBLE)
}

// ParseProxyEvent splits a proxy event topic into its proxy ID and event kind.
// ok is false when topic is not of the form graylogic/ble/proxy/{id}/{event}.
func ParseProxyEvent(topic string) (proxyID, event string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixBLE+"/proxy/")
	if !found {
		return "", "", false
	}
	proxyID, event, found = strings.Cut(rest, "/")
	if !found || proxyID == "" || event == "" || strings.Contains(event, "/") {
		return "", "", false
	}
	return proxyID, event, true
}
