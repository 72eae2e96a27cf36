//go:build integration

package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/automation-creator/internal/infrastructure/config"
)

// Broker-backed tests. They require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	return cfg
}

func TestIntegration_ConnectAndClose(t *testing.T) {
	client, err := Connect(integrationConfig("autocreator-int-connect"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := integrationConfig("autocreator-int-refused")
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); err == nil {
		t.Fatal("Connect() expected error for unreachable broker")
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(integrationConfig("autocreator-int-sub-track"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		Topics{}.AllServiceRequests(),
		Topics{}.AllServiceResponses(),
		Topics{}.HostStates(),
	}
	handler := func(string, []byte) error { return nil }

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_ServiceRequestRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("autocreator-int-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("autocreator-int-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	type received struct {
		domain, service, id string
		body                map[string]any
	}
	got := make(chan received, 1)
	var once sync.Once

	err = sub.Subscribe(Topics{}.AllServiceRequests(), 1, func(topic string, payload []byte) error {
		domain, service, id, _ := Topics{}.ParseServiceRequest(topic)
		var body map[string]any
		if err := json.Unmarshal(payload, &body); err != nil {
			return err
		}
		once.Do(func() { got <- received{domain, service, id, body} })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	topic := Topics{}.ServiceRequest("ai_automation_creator", "create_automation", "req-7")
	if err := pub.PublishJSON(topic, map[string]any{"description": "lights at sunset"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case r := <-got:
		if r.domain != "ai_automation_creator" || r.service != "create_automation" || r.id != "req-7" {
			t.Errorf("received %+v", r)
		}
		if r.body["description"] != "lights at sunset" {
			t.Errorf("body = %v", r.body)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for request")
	}
}
