// Package transport provides the duplex byte-stream layer between the
// client manager and an MCP server, over stdio subprocesses or streaming
// HTTP (§4.1). It frames JSON-RPC 2.0 messages and exposes a close signal;
// it knows nothing about MCP semantics above the frame boundary.
package transport

import (
	"context"
	"errors"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport is a duplex, framed JSON-RPC byte stream to one MCP server.
// Implementations: stdio (subprocess) and streamingHTTP.
type Transport interface {
	// Send enqueues one JSON-RPC frame for delivery. It returns ErrClosed
	// if the transport has been shut down.
	Send(ctx context.Context, msg *schema.RPCMessage) error

	// Recv returns the channel of inbound frames. The channel is closed
	// when the peer closes the connection or Close is called; Err then
	// explains why.
	Recv() <-chan *schema.RPCMessage

	// Err returns the reason Recv's channel closed, once it has. Safe to
	// call after the inbound channel is drained; nil for a clean close.
	Err() error

	// LastError returns diagnostic text for an unexpected close (e.g. the
	// stderr tail of a stdio subprocess), per §4.1's failure semantics.
	LastError() string

	// Close is idempotent; it guarantees the subprocess is reaped or the
	// HTTP session released before returning.
	Close() error
}

// Config bundles what a transport needs to open a connection, mirroring
// schema.ServerConfig but including process-wide policy (web mode).
type Config struct {
	Server  schema.ServerConfig
	WebMode bool
}

// Open constructs the appropriate transport for the given config, refusing
// stdio and non-HTTPS URLs when WebMode is set (§4.1, §6).
func Open(ctx context.Context, cfg Config) (Transport, error) {
	switch cfg.Server.Kind {
	case schema.TransportStdio:
		if cfg.WebMode {
			return nil, errForbiddenStdio
		}
		return openStdio(ctx, cfg.Server)
	case schema.TransportHTTP:
		return openHTTP(ctx, cfg.Server, cfg.WebMode)
	default:
		return nil, errUnknownKind
	}
}

var (
	errForbiddenStdio = errors.New("transport: stdio transports are disabled in web mode")
	errUnknownKind    = errors.New("transport: unknown server config kind")
)
