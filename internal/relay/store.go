// Package relay keeps the shared conversation log: an append-only, in-memory
// record of every message the relay accepted during this process lifetime.
package relay

import "sync"

// MessageStore is the append-only conversation log. Appends arrive from many
// connections concurrently; the relay never mutates or deletes an entry, and
// nothing is pruned for the life of the process.
type MessageStore struct {
	mu       sync.RWMutex
	messages []ChatMessage
}

// NewMessageStore returns an empty conversation log.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append records an accepted message. Order of append is receipt order at the
// relay's broadcast step.
func (s *MessageStore) Append(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Len reports how many messages have been accepted so far.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns a copy of the log in receipt order. The relay never replays
// it over WebSocket; it backs the history export and audit.
func (s *MessageStore) Snapshot() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}
