package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialStdioEmptyCommandIsConfigError(t *testing.T) {
	_, err := DialStdio(context.Background(), "broken", nil, nil)
	require.Error(t, err)
}

func TestDialStdioUnknownBinaryFails(t *testing.T) {
	_, err := DialStdio(context.Background(), "broken", []string{"/nonexistent-floyd-test-binary"}, nil)
	require.Error(t, err)
}

func TestDialStdioHandshakeOverLoopback(t *testing.T) {
	// "cat" echoes each written line straight back, so the initialize
	// request is echoed with the same id and no error field, which
	// satisfies the handshake's Call.
	client, err := DialStdio(context.Background(), "loopback", []string{"cat"}, nil)
	require.NoError(t, err)
	defer client.Close()
}

func TestStdioClientCallAfterCloseFails(t *testing.T) {
	client, err := DialStdio(context.Background(), "loopback", []string{"cat"}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())

	_, err = client.Call(context.Background(), "tools/list", nil)
	require.Error(t, err)
}

func TestDialStdioFailsWhenServerNeverResponds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := DialStdio(ctx, "silent", []string{"sleep", "5"}, nil)
	require.Error(t, err)
}

func TestStdioClientCloseIsIdempotent(t *testing.T) {
	client, err := DialStdio(context.Background(), "loopback", []string{"cat"}, nil)
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestStdioClientCallTimesOutWhenNoResponseArrives(t *testing.T) {
	// Reads and echoes exactly one line (satisfying the initialize
	// handshake), then goes silent: any later Call never sees a reply.
	client, err := DialStdio(context.Background(), "silent-after-handshake", []string{"sh", "-c", "read line; echo \"$line\"; sleep 5"}, nil)
	require.NoError(t, err)
	defer client.Close()

	client.callTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err = client.Call(context.Background(), "tools/list", nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second)
}
