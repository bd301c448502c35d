package kafka

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (m testMessage) Key() string { return m.OrderID }

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("order.confirmed", testMessage{OrderID: "42", Status: "confirmed"})
	require.NoError(t, err)

	assert.Equal(t, "order.confirmed", rec.Topic)
	assert.Equal(t, "42", string(rec.Key))

	var decoded testMessage
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, "confirmed", decoded.Status)

	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "application/json", string(rec.Headers[0].Value))
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), &ProducerConfig{})
	assert.Error(t, err)
}

func TestProducer_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	p, err := NewProducer(context.Background(), &ProducerConfig{
		Brokers:  strings.Split(brokers, ","),
		ClientID: "upgrade-events-test",
	})
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), "order.created", testMessage{OrderID: "1", Status: "pending"}))
}
