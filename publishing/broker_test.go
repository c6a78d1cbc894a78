package publishing

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	eventlevel "github.com/yeti47/securitycam/event-level"
)

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startBroker runs an in-process broker on a free loopback port.
func startBroker(t *testing.T) string {
	t.Helper()
	return startBrokerAt(t, freeAddr(t))
}

func startBrokerAt(t *testing.T, addr string) string {
	t.Helper()

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "test",
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { broker.Close() })

	return "tcp://" + addr
}

func TestMQTTPublisher_EmbeddedBroker(t *testing.T) {
	broker := startBroker(t)

	received := make(chan mqtt.Message, 1)
	observer := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	token := observer.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer observer.Disconnect(100)

	token = observer.Subscribe("securitycam/+/level", 1, func(_ mqtt.Client, m mqtt.Message) {
		received <- m
	})
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	p := NewMQTTPublisher(Settings{Broker: broker, ClientID: "garage-cam"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Connect(ctx))
	defer p.Close()

	require.NoError(t, p.PublishTransition(eventlevel.Transition{
		CameraID: "garage", SessionID: "s2", From: eventlevel.LevelConcerning, To: eventlevel.LevelAlarming,
		At: time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC),
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "securitycam/garage/level", msg.Topic())
		var decoded LevelMessage
		require.NoError(t, json.Unmarshal(msg.Payload(), &decoded))
		assert.Equal(t, 4, decoded.Level)
		assert.Equal(t, "raised", decoded.Direction)
	case <-time.After(5 * time.Second):
		t.Fatal("level message was not delivered")
	}
}

func TestMQTTPublisher_BrokerStartsLate(t *testing.T) {
	addr := freeAddr(t)

	p := NewMQTTPublisher(Settings{
		Broker:               "tcp://" + addr,
		ClientID:             "porch-cam",
		ConnectRetryInterval: 100 * time.Millisecond,
		ConnectWait:          200 * time.Millisecond,
	}, nil)
	defer p.Close()

	require.NoError(t, p.Connect(context.Background()), "an unreachable broker is retried, not fatal")
	assert.False(t, p.Stats().Connected)
	assert.ErrorIs(t, p.PublishTransition(eventlevel.Transition{CameraID: "porch", From: 1, To: 2}), ErrNotConnected)

	startBrokerAt(t, addr)

	require.Eventually(t, func() bool { return p.Stats().Connected }, 5*time.Second, 20*time.Millisecond)
	assert.NoError(t, p.PublishTransition(eventlevel.Transition{CameraID: "porch", From: 1, To: 2}))
}
