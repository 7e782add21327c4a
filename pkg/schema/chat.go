package schema

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ChatRole mirrors the teacher's message role constants, widened with the
// tool/system roles the chat engine emits.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleTool      ChatRole = "tool"
)

// ChatMessage is one turn of history passed into the chat engine.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	// ToolCallID links a tool-role message back to the call that produced it.
	ToolCallID string `json:"toolCallId,omitempty"`
}

// NamespacedTool is a tool exposed to the model, renamed "serverId:toolName"
// so the model can never invoke a tool ambiguously across servers (§4.5,
// §9 Open Question: composite auto-approval key).
type NamespacedTool struct {
	QualifiedName string     `json:"name"`
	ServerID      string     `json:"serverId"`
	ToolName      string     `json:"toolName"`
	Description   string     `json:"description,omitempty"`
	InputSchema   JSONSchema `json:"inputSchema,omitempty"`
}

// ToolCall is a model-issued invocation of a NamespacedTool.
type ToolCall struct {
	ID            string `json:"id"`
	QualifiedName string `json:"name"`
	Arguments     string `json:"arguments"` // raw JSON object text
}

// ApprovalDecision is the outcome of a tool-approval-request round trip.
type ApprovalDecision string

const (
	ApprovalApprove           ApprovalDecision = "approve"
	ApprovalApproveForSession ApprovalDecision = "approve-for-session"
	ApprovalDeny              ApprovalDecision = "deny"
)

// ChatRequest is the decoded body of POST /chat (§4.6).
type ChatRequest struct {
	Model                string        `json:"model"`
	Provider             string        `json:"provider"`
	APIKey               string        `json:"apiKey"`
	SystemPrompt         string        `json:"systemPrompt,omitempty"`
	Temperature          float64       `json:"temperature,omitempty"`
	Messages             []ChatMessage `json:"messages"`
	ServerIDs            []string      `json:"serverIds"`
	SessionApprovedTools []string      `json:"sessionApprovedTools,omitempty"`
	MaxSteps             int           `json:"maxSteps,omitempty"`
}

// ChatEventKind is the discriminator of events written to the chat-token
// SSE stream and published on the chat-token hub topic.
type ChatEventKind string

const (
	EventText         ChatEventKind = "text"
	EventToolApproval ChatEventKind = "tool-approval-request"
	EventToolCall     ChatEventKind = "tool-call"
	EventToolResult   ChatEventKind = "tool-result"
	EventToolProgress ChatEventKind = "tool-progress"
	EventDone         ChatEventKind = "done"
	EventErrorKind    ChatEventKind = "error"
)

// ChatEvent is one item of the stream the chat engine emits to its SSE
// subscriber and republishes on the chat-token hub topic.
type ChatEvent struct {
	Kind       ChatEventKind `json:"kind"`
	Text       string        `json:"text,omitempty"`
	ToolCallID string        `json:"toolCallId,omitempty"`
	ToolName   string        `json:"toolName,omitempty"`
	Arguments  string        `json:"arguments,omitempty"`
	Result     string        `json:"result,omitempty"`
	// Progress/Total carry a tool-progress event's notifications/progress
	// payload (§4.2, §4.5 step 3); unset for every other Kind.
	Progress float64 `json:"progress,omitempty"`
	Total    float64 `json:"total,omitempty"`
	IsError  bool    `json:"isError,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// XRayEvent captures the full outgoing model request payload for developer
// inspection (§4.5 step 2).
type XRayEvent struct {
	Model        string           `json:"model"`
	Provider     string           `json:"provider"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	Tools        []NamespacedTool `json:"tools,omitempty"`
	Messages     []ChatMessage    `json:"messages"`
}

// TurnState is the per-turn chat engine state machine (§4.5).
type TurnState string

const (
	TurnIdle            TurnState = "idle"
	TurnStreaming       TurnState = "streaming"
	TurnAwaitingTool    TurnState = "awaiting-tool"
	TurnAwaitingApprove TurnState = "awaiting-approval"
	TurnDone            TurnState = "done"
	TurnErrored         TurnState = "errored"
	TurnCancelled       TurnState = "cancelled"
)
