package natsbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestTimerSubject(t *testing.T) {
	assert.Equal(t, "kitchen.t1.timers", TimerSubject("t1"))
	assert.Equal(t, "kitchen.acme_eu_.timers", TimerSubject("acme.eu>"))
}

func TestBroadcaster_PublishesToTenantSubject(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := Connect(server.ClientURL(), "comanda-test", zap.NewNop())
	require.NoError(t, err)
	defer nc.Close()

	b := NewBroadcaster(nc, zap.NewNop())

	ch := make(chan *nats.Msg, 4)
	unsubscribe, err := b.Subscribe("t1", ch)
	require.NoError(t, err)
	defer unsubscribe()

	other := make(chan *nats.Msg, 4)
	unsubscribeOther, err := b.Subscribe("t2", other)
	require.NoError(t, err)
	defer unsubscribeOther()
	require.NoError(t, nc.Flush())

	payload := map[string]interface{}{"tickets": []string{"#001"}}
	require.NoError(t, b.Broadcast(context.Background(), "t1", payload))

	select {
	case msg := <-ch:
		assert.Equal(t, "kitchen.t1.timers", msg.Subject)
		var got map[string][]string
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, []string{"#001"}, got["tickets"])
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not received")
	}

	select {
	case msg := <-other:
		t.Fatalf("unexpected message on %s", msg.Subject)
	case <-time.After(100 * time.Millisecond):
	}
}
