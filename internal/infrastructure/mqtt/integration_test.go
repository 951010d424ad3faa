//go:build integration

package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-ble/internal/infrastructure/config"
)

// These tests need a Mosquitto broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func brokerConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func connect(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(brokerConfig(clientID))
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

type received struct {
	topic   string
	payload string
}

// collect subscribes to topic and returns a channel of delivered messages.
func collect(t *testing.T, client *Client, topic string) <-chan received {
	t.Helper()
	ch := make(chan received, 32)
	err := client.Subscribe(topic, 1, func(topic string, payload []byte) error {
		ch <- received{topic: topic, payload: string(payload)}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe(%s) error = %v", topic, err)
	}
	// Let the broker register the subscription.
	time.Sleep(100 * time.Millisecond)
	return ch
}

func next(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
		return received{}
	}
}

func TestIntegration_ConnectAndHealth(t *testing.T) {
	client := connect(t, "graylogic-ble-int-health")

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := brokerConfig("graylogic-ble-int-refused")
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// Proxy events for one link must arrive in publish order.
func TestIntegration_ProxyEventsInOrder(t *testing.T) {
	proxy := connect(t, "graylogic-ble-int-proxy")
	bridge := connect(t, "graylogic-ble-int-bridge")

	events := collect(t, bridge, Topics{}.AllProxyEvents())

	order := []string{ProxyEventConnection, ProxyEventServices, ProxyEventReadResponse, ProxyEventReadResponse}
	for i, event := range order {
		payload := []byte(fmt.Sprintf(`{"seq":%d}`, i))
		if err := proxy.Publish(Topics{}.ProxyEvent("hall-proxy", event), payload, 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", event, err)
		}
	}

	for i, want := range order {
		msg := next(t, events)
		proxyID, event, ok := ParseProxyEvent(msg.topic)
		if !ok || proxyID != "hall-proxy" || event != want {
			t.Fatalf("message %d topic = %s, want %s event", i, msg.topic, want)
		}
		if wantPayload := fmt.Sprintf(`{"seq":%d}`, i); msg.payload != wantPayload {
			t.Errorf("message %d payload = %s, want %s", i, msg.payload, wantPayload)
		}
	}
}

func TestIntegration_RetainedIdentityState(t *testing.T) {
	bridge := connect(t, "graylogic-ble-int-state")

	topic := Topics{}.BridgeState(ProtocolBLE, "C0:98:E5:00:12:34")
	state := `{"state":{"name":"Study Keyboard"}}`
	if err := bridge.Publish(topic, []byte(state), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	t.Cleanup(func() {
		// Clear the retained message.
		bridge.Publish(topic, nil, 1, true)
	})

	// A subscriber arriving later still sees the current state.
	core := connect(t, "graylogic-ble-int-core")
	msg := next(t, collect(t, core, topic))
	if msg.payload != state {
		t.Errorf("retained payload = %s, want %s", msg.payload, state)
	}
}

func TestIntegration_Unsubscribe(t *testing.T) {
	proxy := connect(t, "graylogic-ble-int-unsub-proxy")
	bridge := connect(t, "graylogic-ble-int-unsub-bridge")

	topic := Topics{}.AllProxyEvents()
	events := collect(t, bridge, topic)
	if bridge.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount() = %d, want 1", bridge.SubscriptionCount())
	}

	if err := bridge.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if bridge.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bridge.SubscriptionCount())
	}

	if err := proxy.Publish(Topics{}.ProxyEvent("hall-proxy", ProxyEventConnection), []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	select {
	case msg := <-events:
		t.Errorf("received %s after Unsubscribe", msg.topic)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestIntegration_HandlerErrorIsLogged(t *testing.T) {
	proxy := connect(t, "graylogic-ble-int-err-proxy")
	bridge := connect(t, "graylogic-ble-int-err-bridge")

	logger := &recordingLogger{}
	bridge.SetLogger(logger)

	var wg sync.WaitGroup
	wg.Add(1)
	err := bridge.Subscribe(Topics{}.AllProxyEvents(), 1, func(string, []byte) error {
		defer wg.Done()
		return errors.New("bad payload")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := proxy.Publish(Topics{}.ProxyEvent("hall-proxy", ProxyEventServices), []byte(`{`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	wg.Wait()

	// The warning is logged after the handler returns.
	time.Sleep(50 * time.Millisecond)
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
}

func TestIntegration_CloseDisconnects(t *testing.T) {
	client, err := Connect(brokerConfig("graylogic-ble-int-close"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.Publish("graylogic/test", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}
