package schema

import (
	"encoding/json"
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

const RPCVersion = "2.0"

// RPCMessage is the raw wire shape shared by requests, responses and
// notifications. It is parsed once at the transport boundary into a typed
// variant (§9: "tagged variants at the boundary") by Kind.
type RPCMessage struct {
	Version string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *RPCError        `json:"error,omitempty"`
}

// RPCKind is the tagged-variant discriminator for a parsed RPCMessage.
type RPCKind int

const (
	RPCKindRequest RPCKind = iota
	RPCKindResponse
	RPCKindNotification
)

// Kind classifies the message per JSON-RPC 2.0: a request has both a
// method and an id, a notification has a method and no id, a response has
// an id and either a result or an error but no method.
func (m *RPCMessage) Kind() RPCKind {
	switch {
	case m.Method != "" && m.ID != nil:
		return RPCKindRequest
	case m.Method != "":
		return RPCKindNotification
	default:
		return RPCKindResponse
	}
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Data != nil {
		return fmt.Sprintf("%d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// JSON-RPC error codes used when the manager or session synthesizes an
// error response.
const (
	RPCErrorParseError     = -32700
	RPCErrorInvalidRequest = -32600
	RPCErrorMethodNotFound = -32601
	RPCErrorInvalidParams  = -32602
	RPCErrorInternalError  = -32603
)

// NewRequest builds a request frame with the given integer id.
func NewRequest(id int64, method string, params any) (*RPCMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	idRaw := json.RawMessage(fmt.Sprintf("%d", id))
	return &RPCMessage{
		Version: RPCVersion,
		ID:      &idRaw,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds a notification frame (no id).
func NewNotification(method string, params any) (*RPCMessage, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &RPCMessage{
		Version: RPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// IDString renders the message id as a string key for a waiter table,
// regardless of whether the peer encoded it as a JSON number or string.
func (m *RPCMessage) IDString() string {
	if m.ID == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(*m.ID, &s); err == nil {
		return s
	}
	return string(*m.ID)
}

///////////////////////////////////////////////////////////////////////////////
// MCP METHOD NAMES (§6)

const (
	MethodInitialize        = "initialize"
	MethodInitialized       = "notifications/initialized"
	MethodListTools         = "tools/list"
	MethodCallTool          = "tools/call"
	MethodListResources     = "resources/list"
	MethodReadResource      = "resources/read"
	MethodListPrompts       = "prompts/list"
	MethodGetPrompt         = "prompts/get"
	MethodPing              = "ping"
	MethodSetLogLevel       = "logging/setLevel"
	MethodElicitationCreate = "elicitation/create"
	MethodToolsListChanged  = "notifications/tools/list_changed"
	MethodLoggingMessage    = "notifications/message"
	MethodProgress          = "notifications/progress"
	MethodCancelRequest     = "$/cancelRequest"
)

// RequestMeta is the "_meta" envelope MCP attaches to a request that wants
// correlated notifications/progress frames (§4.2).
type RequestMeta struct {
	ProgressToken string `json:"progressToken,omitempty"`
}

// ProgressParams is the payload of a notifications/progress notification,
// correlated back to its originating call via ProgressToken (§4.2, §4.5
// step 3).
type ProgressParams struct {
	ProgressToken string  `json:"progressToken"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// ClientInfo / ServerInfo are exchanged during the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// CapSet converts the raw capabilities map from the handshake into the
// typed Capability flags the server record stores.
func (r *InitializeResult) CapSet() []Capability {
	var out []Capability
	check := func(key string, c Capability) {
		if _, ok := r.Capabilities[key]; ok {
			out = append(out, c)
		}
	}
	check("tools", CapTools)
	check("resources", CapResources)
	check("prompts", CapPrompts)
	check("logging", CapLogging)
	check("elicitation", CapElicitation)
	check("tasks", CapTasks)
	return out
}

type ListParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type GetPromptParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type SetLogLevelParams struct {
	Level string `json:"level"`
}

// ElicitationCreateParams is the payload of a server-initiated
// elicitation/create request (§4.4).
type ElicitationCreateParams struct {
	Message         string     `json:"message"`
	RequestedSchema JSONSchema `json:"requestedSchema"`
}
