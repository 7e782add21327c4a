// Package provider contains concrete chat.Driver adapters. AnthropicDriver is
// grounded on the teacher's pkg/provider/anthropic generator.go/schema.go: the
// same streamEvent envelope, the same accumulate-blocks-then-finalize
// approach, and the same client.OptTextStreamCallback/TextStreamEvent.Json
// plumbing, reshaped to push events onto a channel instead of an opt.StreamFn
// callback since chat.Driver's Stream returns one.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	chat "github.com/MCPJam/inspector-sub007/pkg/chat"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	anthropicEndpoint   = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	anthropicMaxTokens  = 4096

	// toolNameSep replaces the qualified tool name's ":" separator on the
	// wire: Anthropic tool names must match ^[a-zA-Z0-9_-]{1,128}$, which
	// rejects a colon.
	toolNameSep = "__"
)

const (
	eventMessageStart      = "message_start"
	eventContentBlockStart = "content_block_start"
	eventContentBlockDelta = "content_block_delta"
	eventMessageDelta      = "message_delta"
	eventMessageStop       = "message_stop"
	eventPing              = "ping"
	eventError             = "error"

	blockTypeToolUse = "tool_use"

	deltaTypeText      = "text_delta"
	deltaTypeInputJSON = "input_json_delta"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES - wire format (subset of the Messages API this driver exercises)

type messagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type messagesResponse struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type messagesUsage struct {
	OutputTokens uint `json:"output_tokens"`
}

type streamEvent struct {
	Type         string                 `json:"type"`
	Index        int                    `json:"index"`
	Message      *messagesResponse      `json:"message,omitempty"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Delta        *streamDelta           `json:"delta,omitempty"`
	Usage        *messagesUsage         `json:"usage,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// AnthropicDriver is a chat.Driver backed by the Anthropic Messages API.
type AnthropicDriver struct {
	client *client.Client
}

var _ chat.Driver = (*AnthropicDriver)(nil)

// NewAnthropic constructs a driver scoped to one API key, mirroring the
// teacher's anthropic.New.
func NewAnthropic(apiKey string, opts ...client.ClientOpt) (*AnthropicDriver, error) {
	opts = append(opts,
		client.OptEndpoint(anthropicEndpoint),
		client.OptHeader("x-api-key", apiKey),
		client.OptHeader("anthropic-version", anthropicAPIVersion),
	)
	c, err := client.New(opts...)
	if err != nil {
		return nil, err
	}
	return &AnthropicDriver{client: c}, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Stream sends one turn to the Messages API and relays the SSE response as
// DriverEvents. The network call runs in a goroutine so Stream can return the
// channel immediately, same as every other streaming caller in this repo.
func (d *AnthropicDriver) Stream(ctx context.Context, req chat.DriverRequest) (<-chan chat.DriverEvent, error) {
	payload, err := client.NewJSONRequest(anthropicRequestFrom(req))
	if err != nil {
		return nil, err
	}

	out := make(chan chat.DriverEvent, 16)
	go d.run(ctx, payload, out)
	return out, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (d *AnthropicDriver) run(ctx context.Context, payload client.Payload, out chan<- chat.DriverEvent) {
	defer close(out)

	var blocks []anthropicContentBlock

	callback := func(event client.TextStreamEvent) error {
		var ev streamEvent
		if err := event.Json(&ev); err != nil {
			return err
		}

		switch ev.Type {
		case eventContentBlockStart:
			for len(blocks) <= ev.Index {
				blocks = append(blocks, anthropicContentBlock{})
			}
			if ev.ContentBlock != nil {
				blocks[ev.Index] = *ev.ContentBlock
				if blocks[ev.Index].Type == blockTypeToolUse {
					blocks[ev.Index].Input = nil
				}
			}

		case eventContentBlockDelta:
			if ev.Delta == nil {
				return nil
			}
			for len(blocks) <= ev.Index {
				blocks = append(blocks, anthropicContentBlock{})
			}
			switch ev.Delta.Type {
			case deltaTypeText:
				blocks[ev.Index].Text += ev.Delta.Text
				out <- chat.DriverEvent{Kind: chat.DriverEventText, Text: ev.Delta.Text}
			case deltaTypeInputJSON:
				blocks[ev.Index].Input = append(blocks[ev.Index].Input, []byte(ev.Delta.PartialJSON)...)
			}

		case eventMessageStop:
			return io.EOF

		case eventPing, eventMessageStart, eventMessageDelta:
			// no accumulation needed for this driver's subset

		case eventError:
			return fmt.Errorf("anthropic stream error")
		}

		return nil
	}

	var discard messagesResponse
	err := d.client.DoWithContext(ctx, payload, &discard, client.OptPath("messages"), client.OptTextStreamCallback(callback))

	for _, b := range blocks {
		if b.Type != blockTypeToolUse {
			continue
		}
		out <- chat.DriverEvent{Kind: chat.DriverEventToolCall, ToolCall: schema.ToolCall{
			ID:            b.ID,
			QualifiedName: unsanitizeToolName(b.Name),
			Arguments:     string(b.Input),
		}}
	}

	if err != nil && err != io.EOF {
		out <- chat.DriverEvent{Kind: chat.DriverEventError, Err: err}
		return
	}

	out <- chat.DriverEvent{Kind: chat.DriverEventEndOfTurn}
}

func anthropicRequestFrom(req chat.DriverRequest) messagesRequest {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case schema.RoleTool:
			messages = append(messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   json.RawMessage(jsonQuote(m.Content)),
				}},
			})
		case schema.RoleAssistant:
			messages = append(messages, anthropicMessage{
				Role:    "assistant",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		default:
			messages = append(messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        sanitizeToolName(t.QualifiedName),
			Description: t.Description,
			InputSchema: json.RawMessage(t.InputSchema),
		})
	}

	return messagesRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
		Tools:     tools,
		Stream:    true,
	}
}

// sanitizeToolName/unsanitizeToolName convert between the engine's
// "serverId:toolName" qualified name and the wire-safe name Anthropic's tool
// schema accepts.
func sanitizeToolName(qualified string) string {
	out := make([]byte, 0, len(qualified))
	for i := 0; i < len(qualified); i++ {
		if qualified[i] == ':' {
			out = append(out, toolNameSep...)
			continue
		}
		out = append(out, qualified[i])
	}
	return string(out)
}

func unsanitizeToolName(wire string) string {
	for i := 0; i+len(toolNameSep) <= len(wire); i++ {
		if wire[i:i+len(toolNameSep)] == toolNameSep {
			return wire[:i] + ":" + wire[i+len(toolNameSep):]
		}
	}
	return wire
}

func jsonQuote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
