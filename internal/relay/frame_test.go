package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthRequest(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "valid auth frame",
			raw:  `{"type":"auth","username":"alice"}`,
			want: "alice",
		},
		{
			name:    "wrong tag",
			raw:     `{"type":"hello","username":"alice"}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			raw:     `{"username":"alice"}`,
			wantErr: true,
		},
		{
			name:    "empty username",
			raw:     `{"type":"auth","username":""}`,
			wantErr: true,
		},
		{
			name:    "missing username",
			raw:     `{"type":"auth"}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			raw:     `hello there`,
			wantErr: true,
		},
		{
			name:    "chat frame is not an auth frame",
			raw:     `{"text":"hi"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, err := parseAuthRequest([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, username)
		})
	}
}

func TestParseSendRequest(t *testing.T) {
	req, err := parseSendRequest([]byte(`{"text":"hi there"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi there", req.Text)

	// Leading and trailing whitespace is preserved on the wire.
	req, err = parseSendRequest([]byte(`{"text":"  padded  "}`))
	require.NoError(t, err)
	assert.Equal(t, "  padded  ", req.Text)

	_, err = parseSendRequest([]byte(`{"text":""}`))
	require.ErrorIs(t, err, errEmptyText)

	_, err = parseSendRequest([]byte(`{"text":"   "}`))
	require.ErrorIs(t, err, errEmptyText)

	_, err = parseSendRequest([]byte(`{}`))
	require.ErrorIs(t, err, errEmptyText)

	_, err = parseSendRequest([]byte(`not json`))
	require.Error(t, err)
}

func TestChatMessageFrame(t *testing.T) {
	ts := time.Date(2025, time.March, 14, 9, 26, 53, 589_000_000, time.UTC)
	msg := ChatMessage{Sender: "alice", Text: "hi", Timestamp: ts}

	frame := msg.Frame()
	assert.Equal(t, "alice", frame.UserID)
	assert.Equal(t, "hi", frame.Text)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", frame.Timestamp)

	// Non-UTC timestamps are converted before rendering.
	loc := time.FixedZone("CET", 3600)
	msg.Timestamp = ts.In(loc)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", msg.Frame().Timestamp)
}
