package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PushDeliversToUserClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	userID := uuid.New()
	client := &Client{hub: hub, userID: userID, send: make(chan []byte, 1)}
	other := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 1)}
	require.True(t, hub.Register(client))
	require.True(t, hub.Register(other))
	assert.Eventually(t, func() bool { return hub.Connected() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Push(userID, "invoice.paid", map[string]string{"invoiceNumber": "JD-000001"}))

	select {
	case raw := <-client.send:
		var msg struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "invoice.paid", msg.Type)
		assert.Equal(t, "JD-000001", msg.Data["invoiceNumber"])
	case <-time.After(time.Second):
		t.Fatal("сообщение не доставлено")
	}

	select {
	case <-other.send:
		t.Fatal("сообщение ушло чужому пользователю")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	assert.False(t, hub.Register(&Client{hub: hub, userID: uuid.New(), send: make(chan []byte)}))
	hub.Unregister(&Client{hub: hub})
}
