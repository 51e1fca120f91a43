package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	tb := newTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		require.True(t, tb.allow(), "request %d within burst should be allowed", i)
	}
	assert.False(t, tb.allow(), "request beyond burst should be denied")
}

func TestTokenBucketRefills(t *testing.T) {
	tb := newTokenBucket(2, 100*time.Millisecond)

	require.True(t, tb.allow())
	require.True(t, tb.allow())
	require.False(t, tb.allow())

	time.Sleep(150 * time.Millisecond)
	assert.True(t, tb.allow(), "bucket should refill after the interval")
}

func TestTokenBucketSanitizesParameters(t *testing.T) {
	tb := newTokenBucket(0, 0)
	assert.True(t, tb.allow(), "sanitized bucket must admit at least one frame")
}
