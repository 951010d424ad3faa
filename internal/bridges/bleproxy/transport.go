package bleproxy

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/mqtt"
)

// proxyTransport carries attribute reads for one link to the proxy that
// owns it. It implements gatt.Transport; request IDs come from the client.
type proxyTransport struct {
	publisher MQTTClient
	topic     string
	qos       byte
	mtu       int

	// sent is shared with the bridge for health reporting.
	sent *atomic.Uint64
}

func newProxyTransport(publisher MQTTClient, proxyID, address string, qos byte, mtu int, sent *atomic.Uint64) *proxyTransport {
	return &proxyTransport{
		publisher: publisher,
		topic:     mqtt.Topics{}.ProxyRequest(proxyID, address),
		qos:       qos,
		mtu:       mtu,
		sent:      sent,
	}
}

// SendRead asks the proxy for the value at handle.
func (t *proxyTransport) SendRead(id uint32, handle uint16) error {
	return t.send(ReadRequestMessage{ID: id, Op: OpRead, Handle: handle})
}

// SendReadBlob asks the proxy for the value at handle starting at offset.
func (t *proxyTransport) SendReadBlob(id uint32, handle, offset uint16) error {
	return t.send(ReadRequestMessage{ID: id, Op: OpReadBlob, Handle: handle, Offset: offset})
}

// MTU returns the ATT_MTU the proxy negotiated for this link.
func (t *proxyTransport) MTU() int {
	return t.mtu
}

func (t *proxyTransport) send(req ReadRequestMessage) error {
	if !t.publisher.IsConnected() {
		return ErrNotConnected
	}

	req.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal read request: %w", err)
	}
	if err := t.publisher.Publish(t.topic, payload, t.qos, false); err != nil {
		return fmt.Errorf("publish read request: %w", err)
	}
	if t.sent != nil {
		t.sent.Add(1)
	}
	return nil
}
