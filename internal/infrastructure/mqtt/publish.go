package mqtt

import "fmt"

// maxPayloadSize caps a single message at 1MB. Identity state and read
// requests are a few hundred bytes; anything near the cap is a bug.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic and waits for the broker to accept it.
//
// Retain state (graylogic/state/ble/..., graylogic/health/ble) so late
// subscribers see the current value; never retain read requests.
//
// Example:
//
//	topic := mqtt.Topics{}.ProxyRequest("hall-proxy", "C0:98:E5:00:12:34")
//	err := client.Publish(topic, []byte(`{"id":1,"op":"read","handle":3}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return wait(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}
