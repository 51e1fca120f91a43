package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubShutdownWithoutClients(t *testing.T) {
	hub := NewHub(NewConfig(), NewMessageStore())
	go hub.Run()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Shutdown(2*time.Second))
}

func TestHubShutdownClosesClientConnections(t *testing.T) {
	hub, _, _, wsURL := newTestRelay(t)

	clients := []*wsClient{
		dialRelay(t, wsURL, testOrigin),
		dialRelay(t, wsURL, testOrigin),
		dialRelay(t, wsURL, testOrigin),
	}
	clients[0].sendJSON(t, AuthRequest{Type: "auth", Username: "alice"})
	clients[1].sendJSON(t, AuthRequest{Type: "auth", Username: "bob"})
	waitForParticipants(t, hub, 2)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Shutdown(5*time.Second))

	// Every client, authenticated or pending, observes the close.
	for i, client := range clients {
		require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := client.conn.ReadMessage()
		assert.Error(t, err, "client %d should be disconnected", i)
	}
}

func TestHubShutdownIsIdempotent(t *testing.T) {
	hub := NewHub(NewConfig(), NewMessageStore())
	go hub.Run()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Shutdown(time.Second))
	require.NoError(t, hub.Shutdown(time.Second))
}
