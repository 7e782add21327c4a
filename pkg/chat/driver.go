// Package chat implements the chat engine (§4.5): a streaming tool-calling
// loop over an abstract model driver, dispatching tool calls to the client
// manager instead of a local toolkit and gating each call on an approval
// decision before dispatch.
package chat

import (
	"context"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Driver is the abstract model handle the engine streams against. Its shape
// mirrors the teacher's llm.Generator/llm.Client pair so a concrete adapter
// can wrap any provider client with minimal glue; the engine never imports a
// provider package directly.
type Driver interface {
	Stream(ctx context.Context, req DriverRequest) (<-chan DriverEvent, error)
}

// DriverRequest is one outgoing turn: the full message history, the
// namespaced tool catalogue and the system prompt, rebuilt on every
// iteration of the tool-calling loop (teacher's generator.go calls
// generator.WithSession once per iteration for the same reason).
type DriverRequest struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	Messages     []schema.ChatMessage
	Tools        []schema.NamespacedTool
}

// DriverEventKind discriminates one item of a driver's event stream.
type DriverEventKind string

const (
	DriverEventText      DriverEventKind = "text"
	DriverEventToolCall  DriverEventKind = "tool-call"
	DriverEventEndOfTurn DriverEventKind = "end-of-turn"
	DriverEventError     DriverEventKind = "error"
)

// DriverEvent is one item of a Driver's stream. A tool-call event carries an
// already-finalized call: accumulating provider-specific deltas into a
// complete ToolCall is the driver adapter's job, not the engine's.
type DriverEvent struct {
	Kind     DriverEventKind
	Text     string
	ToolCall schema.ToolCall
	Err      error
}
