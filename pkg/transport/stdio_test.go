package transport_test

import (
	"context"
	"testing"
	"time"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	transport "github.com/MCPJam/inspector-sub007/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cat echoes each newline-delimited JSON-RPC frame back unmodified, which is
// enough to exercise the write/read loop framing without a real MCP server.
func TestOpenStdio_SendReceivesEchoedFrame(t *testing.T) {
	tr, err := transport.Open(context.Background(), transport.Config{
		Server: schema.ServerConfig{Kind: schema.TransportStdio, Command: "cat"},
	})
	require.NoError(t, err)
	defer tr.Close()

	req, err := schema.NewRequest(7, "ping", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), req))

	select {
	case got := <-tr.Recv():
		assert.Equal(t, "7", got.IDString())
		assert.Equal(t, "ping", got.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the echoed frame")
	}
}

func TestOpenStdio_CloseIsIdempotentAndClosesRecv(t *testing.T) {
	tr, err := transport.Open(context.Background(), transport.Config{
		Server: schema.ServerConfig{Kind: schema.TransportStdio, Command: "cat"},
	})
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, ok := <-tr.Recv()
	assert.False(t, ok)
}
