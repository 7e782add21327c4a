// Package schema holds the data model shared across the transport, client
// session, manager, hub, chat engine and HTTP edge packages.
package schema

import (
	"encoding/json"
	"time"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// TransportKind distinguishes the two server configuration shapes in §3.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// AuthKind is the authentication scheme an HTTP server configuration uses.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthOAuth  AuthKind = "oauth"
)

// ServerConfig is one of the two shapes from §3: a stdio subprocess or an
// HTTP/SSE endpoint. Only the fields relevant to Kind are populated.
type ServerConfig struct {
	Kind TransportKind `json:"kind"`

	// Stdio fields
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`

	// HTTP fields
	URL      string            `json:"url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	AuthKind AuthKind          `json:"authKind,omitempty"`
}

// ServerState is one of the six states a server record can be in (§3).
type ServerState string

const (
	StateDisconnected  ServerState = "disconnected"
	StateConnecting    ServerState = "connecting"
	StateHandshaking   ServerState = "handshaking"
	StateReady         ServerState = "ready"
	StateOAuthRequired ServerState = "oauth-required"
	StateFailed        ServerState = "failed"
)

// Capability is one of the advertised MCP capability flags.
type Capability string

const (
	CapTools       Capability = "tools"
	CapResources   Capability = "resources"
	CapPrompts     Capability = "prompts"
	CapLogging     Capability = "logging"
	CapElicitation Capability = "elicitation"
	CapTasks       Capability = "tasks"
)

// ServerRecord is the manager's view of one configured server, per §3.
// Mutated only by the manager's single-writer actor; readers see a
// snapshot returned by ListServers/GetServer.
type ServerRecord struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Config          ServerConfig   `json:"config"`
	State           ServerState    `json:"state"`
	LastError       string         `json:"lastError,omitempty"`
	RetryCount      int            `json:"retryCount"`
	Caps            []Capability   `json:"caps,omitempty"`
	ProtocolVersion string         `json:"protocolVersion,omitempty"`
	ServerVersion   string         `json:"serverVersion,omitempty"`
	Generation      uint64         `json:"generation"`
	Tools           []ToolMeta     `json:"tools,omitempty"`
	Resources       []ResourceMeta `json:"resources,omitempty"`
	Prompts         []PromptMeta   `json:"prompts,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// HasCapability reports whether the record advertises the given capability.
func (r *ServerRecord) HasCapability(c Capability) bool {
	for _, v := range r.Caps {
		if v == c {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy safe to hand to a reader outside the
// manager's single-writer actor (slices are copied; the config map fields
// are shared read-only views, which is safe since configs are immutable
// once a record is created).
func (r *ServerRecord) Clone() *ServerRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Caps = append([]Capability(nil), r.Caps...)
	c.Tools = append([]ToolMeta(nil), r.Tools...)
	c.Resources = append([]ResourceMeta(nil), r.Resources...)
	c.Prompts = append([]PromptMeta(nil), r.Prompts...)
	return &c
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (c ServerConfig) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func (r ServerRecord) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}
