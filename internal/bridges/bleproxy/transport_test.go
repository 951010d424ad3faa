package bleproxy

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
)

func TestProxyTransport(t *testing.T) {
	client := NewMockMQTTClient()
	var sent atomic.Uint64
	tr := newProxyTransport(client, "proxy-1", testAddress, 1, 185, &sent)

	if tr.MTU() != 185 {
		t.Errorf("MTU() = %d, want 185", tr.MTU())
	}

	if err := tr.SendRead(1, 3); err != nil {
		t.Fatalf("SendRead() error = %v", err)
	}
	if err := tr.SendReadBlob(2, 3, 184); err != nil {
		t.Fatalf("SendReadBlob() error = %v", err)
	}

	published := client.GetPublished()
	if len(published) != 2 {
		t.Fatalf("published = %d, want 2", len(published))
	}
	for _, p := range published {
		if p.Topic != "graylogic/ble/request/proxy-1/"+testAddress || p.QoS != 1 || p.Retained {
			t.Errorf("publish = %+v", p)
		}
	}

	var read, blob ReadRequestMessage
	if err := json.Unmarshal(published[0].Payload, &read); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(published[1].Payload, &blob); err != nil {
		t.Fatal(err)
	}
	if read.ID != 1 || read.Op != OpRead || read.Handle != 3 || read.Offset != 0 {
		t.Errorf("read = %+v", read)
	}
	if blob.ID != 2 || blob.Op != OpReadBlob || blob.Offset != 184 {
		t.Errorf("blob = %+v", blob)
	}
	if read.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if sent.Load() != 2 {
		t.Errorf("sent = %d, want 2", sent.Load())
	}
}

func TestProxyTransport_Errors(t *testing.T) {
	client := NewMockMQTTClient()
	var sent atomic.Uint64
	tr := newProxyTransport(client, "proxy-1", testAddress, 1, 23, &sent)

	client.SetConnected(false)
	if err := tr.SendRead(1, 3); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendRead() error = %v, want ErrNotConnected", err)
	}

	client.SetConnected(true)
	client.publishErr = errors.New("broker gone")
	if err := tr.SendRead(2, 3); err == nil {
		t.Error("SendRead() should fail when publishing fails")
	}

	if sent.Load() != 0 {
		t.Errorf("sent = %d, want 0", sent.Load())
	}
}
