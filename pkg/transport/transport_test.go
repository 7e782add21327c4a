package transport_test

import (
	"context"
	"testing"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	transport "github.com/MCPJam/inspector-sub007/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_RejectsStdioInWebMode(t *testing.T) {
	_, err := transport.Open(context.Background(), transport.Config{
		Server:  schema.ServerConfig{Kind: schema.TransportStdio, Command: "echo"},
		WebMode: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled in web mode")
}

func TestOpen_RejectsUnknownKind(t *testing.T) {
	_, err := transport.Open(context.Background(), transport.Config{
		Server: schema.ServerConfig{Kind: "carrier-pigeon"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown server config kind")
}
