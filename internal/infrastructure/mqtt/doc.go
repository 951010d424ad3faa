// Package mqtt connects the BLE bridge to the Gray Logic message bus.
//
// Proxy nodes sit next to the peripherals and relay link events and
// attribute traffic over the bus. The bridge consumes those events, sends
// read requests back and publishes identity state for the Core:
//
//	BLE proxies <-> broker <-> BLE bridge <-> broker <-> Gray Logic Core
//
// Handlers are delivered one at a time in broker order, which the bridge
// relies on: a proxy's connection, services and read_response events for
// one link must not be reordered. Subscriptions are replayed after a
// reconnect, and a retained offline status is registered as the Last Will
// on graylogic/system/status.
//
// Use TLS and broker ACLs outside local development.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllProxyEvents(), 1, handleProxyEvent)
package mqtt
