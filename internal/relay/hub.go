// Package relay coordinates connection registration, the authenticated
// participant registry, message fan-out, and teardown via the Hub type.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub owns the shared relay state: the set of open connections, the registry
// of authenticated participants, and the conversation log. All mutations are
// serialized through the hub's event loop and its mutex so that a broadcast
// never observes a half-updated registry.
type Hub struct {
	cfg   Config
	store *MessageStore

	// conns holds every open connection regardless of auth state; registry
	// holds only authenticated connections, mapped to their display name.
	conns    map[*Client]struct{}
	registry map[*Client]string

	broadcast  chan ChatMessage
	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub bound to the given configuration and conversation log.
// The returned Hub is ready to accept connections once Run is started.
func NewHub(cfg Config, store *MessageStore) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        sanitizeConfig(cfg),
		store:      store,
		conns:      make(map[*Client]struct{}),
		registry:   make(map[*Client]string),
		broadcast:  make(chan ChatMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run is the hub's main event loop. It must be started in its own goroutine
// and runs until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.registerClient(client)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.dropClient(client)

		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// registerClient adds a freshly accepted connection in the pending state. It
// does not touch the registry; that happens only on promotion.
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.conns[client] = struct{}{}
	connCount := len(h.conns)
	h.mutex.Unlock()

	log.Printf("Connection %s accepted from %s, awaiting auth. Open connections: %d", client.id, client.addr, connCount)
}

// promoteClient moves a pending connection into the registry, binding its
// display name. It returns false if the connection is already gone, which can
// happen when teardown races the promotion. Insertion is atomic with respect
// to broadcast iteration.
func (h *Hub) promoteClient(client *Client, username string) bool {
	h.mutex.Lock()
	if _, open := h.conns[client]; !open || client.closed {
		h.mutex.Unlock()
		return false
	}
	h.registry[client] = username
	participants := len(h.registry)
	h.mutex.Unlock()

	log.Printf("Connection %s authenticated as %q. Participants: %d", client.id, username, participants)
	return true
}

// dropClient removes a connection from both the open set and the registry and
// closes its send channel. Removal is synchronous with teardown so the
// registry never holds a stale entry.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.conns[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.conns, client)
	delete(h.registry, client)
	client.closed = true
	connCount := len(h.conns)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	log.Printf("Connection %s from %s closed. Open connections: %d", client.id, client.addr, connCount)
}

// publish hands an accepted message to the broadcast engine. It gives up
// silently if the hub is shutting down.
func (h *Hub) publish(msg ChatMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.ctx.Done():
	}
}

// handleBroadcast appends the message to the conversation log and delivers its
// wire form to every registered connection, the sender included. Running on
// the hub loop, it is the single critical section that fixes both the log
// order and the per-recipient delivery order.
func (h *Hub) handleBroadcast(msg ChatMessage) {
	payload, err := json.Marshal(msg.Frame())
	if err != nil {
		log.Printf("Dropping message from %q: cannot encode frame: %v", msg.Sender, err)
		return
	}

	h.store.Append(msg)
	recipients := h.registrySnapshot()

	log.Printf("Broadcasting message from %q to %d participants", msg.Sender, len(recipients))

	var failed []*Client
	for _, client := range recipients {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// registrySnapshot returns the authenticated connections at this instant.
func (h *Hub) registrySnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.registry))
	for client := range h.registry {
		clients = append(clients, client)
	}
	return clients
}

// safeSend attempts a non-blocking delivery to one recipient. A full buffer or
// a connection mid-teardown yields false; delivery to the remaining recipients
// is unaffected.
func (h *Hub) safeSend(client *Client, payload []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock for the whole send so teardown cannot close the channel
	// underneath the select.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.conns[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// removeFailedClients evicts recipients whose send buffer could not accept a
// frame. The failure is logged and never surfaced to the sender.
func (h *Hub) removeFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		if _, exists := h.conns[client]; exists {
			delete(h.conns, client)
			delete(h.registry, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Connection %s from %s evicted: send buffer full", client.id, client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// ConnectionCount reports how many connections are currently open, in any
// auth state.
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.conns)
}

// ParticipantCount reports how many connections are authenticated and
// registered for broadcast.
func (h *Hub) ParticipantCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.registry)
}

// shutdownClients closes every open transport so the read pumps unblock.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.conns))
	for client := range h.conns {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown stops the event loop, closes all connections, and waits for the
// per-connection goroutines to finish or the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete.
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
