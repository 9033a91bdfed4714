package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floydai/floyd/pkg/types"
)

// blockingRegistry never answers a tools/call in time for a shrunk
// callTimeout to observe anything but a timeout.
type blockingRegistry struct{}

func (blockingRegistry) ListTools(ctx context.Context) []types.ToolDescriptor { return nil }

func (blockingRegistry) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	time.Sleep(2 * time.Second)
	return "", nil
}

func TestDialWSFailsOnUnreachableAddress(t *testing.T) {
	_, err := DialWS(context.Background(), "unreachable", "ws://127.0.0.1:1", nil)
	require.Error(t, err)
}

func TestWSClientCallAfterCloseFails(t *testing.T) {
	registry := &fakeRegistry{}
	client, cleanup := newTestServer(t, registry)
	defer cleanup()

	require.NoError(t, client.Close())

	_, err := client.Call(context.Background(), "agent/status", nil)
	require.Error(t, err)
}

func TestWSClientCloseIsIdempotent(t *testing.T) {
	registry := &fakeRegistry{}
	client, cleanup := newTestServer(t, registry)
	defer cleanup()

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestWSClientCallTimesOutWhenNoResponseArrives(t *testing.T) {
	registry := &blockingRegistry{}
	client, cleanup := newTestServer(t, registry)
	defer cleanup()

	client.callTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := client.Call(context.Background(), "tools/call", toolCallParams{Name: "x"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second)
}
