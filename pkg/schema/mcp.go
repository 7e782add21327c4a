package schema

import "encoding/json"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// JSONSchema is a raw JSON Schema document, kept undecoded at the data-model
// layer; only the elicitation broker parses it, to check that an accepted
// answer carries every required property. Tool-call arguments are not
// validated against it.
type JSONSchema json.RawMessage

func (s JSONSchema) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

func (s *JSONSchema) UnmarshalJSON(data []byte) error {
	*s = append((*s)[0:0], data...)
	return nil
}

// ToolMeta is the MCP tool entity from §3: a name, description and input
// schema, queried lazily from the session and optionally cached per server.
type ToolMeta struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema JSONSchema `json:"inputSchema,omitempty"`
}

// ResourceMeta is the MCP resource entity from §3.
type ResourceMeta struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PromptMeta is the MCP prompt entity from §3.
type PromptMeta struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Arguments   []PromptArg `json:"arguments,omitempty"`
}

type PromptArg struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ContentItem is one block of tool-call / resource-read / prompt-get
// content, as returned by the MCP wire protocol.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// ToolCallResult is the result of calling a tool. TaskID is set instead of
// Content when the server replies with a task-result envelope (§4.2), so
// callers can opt into task polling rather than treating it as a normal
// content result.
type ToolCallResult struct {
	Content []ContentItem `json:"content,omitempty"`
	IsError bool          `json:"isError,omitempty"`
	TaskID  string        `json:"taskId,omitempty"`
}

// RPCDirection is the perspective tag on an RPCLogEntry (§3), always from
// the manager's point of view.
type RPCDirection string

const (
	DirectionOut RPCDirection = "out"
	DirectionIn  RPCDirection = "in"
)

// RPCLogEntry is one frame observed on the rpc-log topic.
type RPCLogEntry struct {
	ServerID  string          `json:"serverId"`
	Direction RPCDirection    `json:"direction"`
	Timestamp int64           `json:"timestamp"` // unix nanos
	Message   json.RawMessage `json:"message"`
}

///////////////////////////////////////////////////////////////////////////////
// PAGINATION

// Page is the generic cursor-based pagination envelope used by
// listTools/listResources/listPrompts — the cursor is passed through
// verbatim to the server (§4.2).
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}
