// Package relay implements the Parla real-time message relay.
//
// Clients hold one long-lived WebSocket session each. The first frame a
// connection sends must be an authentication request carrying a display name;
// until that frame is accepted, all traffic from the connection is discarded.
// Once authenticated, every inbound frame is treated as a chat message: it is
// appended to the in-memory conversation log and fanned out to every
// authenticated connection, the sender included.
package relay
