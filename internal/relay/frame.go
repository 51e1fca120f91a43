// Package relay defines the wire frames exchanged with clients and the
// helpers that parse and validate them.
package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// isoTimestampLayout renders timestamps the way clients expect them: UTC with
// millisecond precision and a literal Z suffix.
const isoTimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var validate = validator.New(validator.WithRequiredStructEnabled())

var errEmptyText = errors.New("text is empty after trimming")

// AuthRequest is the first frame a client must send on a new connection:
// {"type":"auth","username":"alice"}.
type AuthRequest struct {
	Type     string `json:"type" validate:"required,eq=auth"`
	Username string `json:"username" validate:"required"`
}

// SendRequest is any frame received from an authenticated connection. No type
// tag is required; the text is the whole payload.
type SendRequest struct {
	Text string `json:"text"`
}

// BroadcastFrame is what the relay pushes to every authenticated connection
// when a message is accepted.
type BroadcastFrame struct {
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage is one accepted message in the conversation log. Immutable once
// created; the timestamp is assigned by the server at receipt.
type ChatMessage struct {
	Sender    string
	Text      string
	Timestamp time.Time
}

// Frame renders the message as its outbound wire representation.
func (m ChatMessage) Frame() BroadcastFrame {
	return BroadcastFrame{
		UserID:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp.UTC().Format(isoTimestampLayout),
	}
}

// parseAuthRequest decides whether a raw frame is a well-formed authentication
// request and returns the display name it carries. Any malformed, mistagged,
// or nameless frame is an error; callers discard those silently.
func parseAuthRequest(raw []byte) (string, error) {
	var req AuthRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", err
	}
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	return req.Username, nil
}

// parseSendRequest parses a post-auth frame as a chat-send request. The text
// is relayed verbatim, but a body that is empty after trimming is rejected.
func parseSendRequest(raw []byte) (SendRequest, error) {
	var req SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return SendRequest{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return SendRequest{}, errEmptyText
	}
	return req, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
