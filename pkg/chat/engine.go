package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	core "github.com/MCPJam/inspector-sub007"
	manager "github.com/MCPJam/inspector-sub007/pkg/manager"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const defaultMaxSteps = 10

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Engine drives one chat turn end-to-end (§4.5): resolves the tool catalogue
// from the client manager, streams the driver's output, gates tool calls on
// approval, dispatches approved calls, and feeds results back for the next
// iteration. One Engine is shared process-wide, like the manager and hub;
// state for an in-flight turn lives in the arguments to Run plus the
// pending-approval table keyed by turn id.
type Engine struct {
	mgr    *manager.Manager
	cfg    core.Config
	log    *slog.Logger
	tracer trace.Tracer

	pendingMu sync.Mutex
	pending   map[string]*pendingApproval
}

type toolTarget struct {
	serverID string
	toolName string
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs an Engine. mgr must not be nil; log defaults to
// slog.Default() and tracer to a no-op tracer when nil (§9).
func New(mgr *manager.Manager, cfg core.Config, log *slog.Logger, tracer trace.Tracer) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("chatengine")
	}
	return &Engine{
		mgr:     mgr,
		cfg:     cfg,
		log:     log,
		tracer:  tracer,
		pending: make(map[string]*pendingApproval),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Run drives one turn (§4.5 algorithm, steps 1-5), writing every event to
// sink as it is produced and returning when the driver signals end-of-turn,
// maxSteps is reached, or ctx is cancelled. The caller owns sink and is
// responsible for closing its own SSE/JSON response after Run returns.
func (e *Engine) Run(ctx context.Context, turnID string, req schema.ChatRequest, driver Driver, sink chan<- schema.ChatEvent) (err error) {
	if e.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ChatTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "Chat", trace.WithAttributes(attribute.String("turnId", turnID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	tools, targets, err := e.resolveTools(ctx, req.ServerIDs)
	if err != nil {
		e.emit(sink, schema.ChatEvent{Kind: schema.EventErrorKind, Error: err.Error()})
		return err
	}

	approved := make(map[string]bool, len(req.SessionApprovedTools))
	for _, name := range req.SessionApprovedTools {
		approved[name] = true
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	messages := append([]schema.ChatMessage(nil), req.Messages...)

	for step := 0; step < maxSteps; step++ {
		e.mgr.PublishXRay(schema.XRayEvent{
			Model:        req.Model,
			Provider:     req.Provider,
			SystemPrompt: req.SystemPrompt,
			Tools:        tools,
			Messages:     messages,
		})

		evCh, err := driver.Stream(ctx, DriverRequest{
			Model:        req.Model,
			SystemPrompt: req.SystemPrompt,
			Temperature:  req.Temperature,
			Messages:     messages,
			Tools:        tools,
		})
		if err != nil {
			e.emit(sink, schema.ChatEvent{Kind: schema.EventErrorKind, Error: err.Error()})
			return err
		}

		var text strings.Builder
		var calls []schema.ToolCall

	drain:
		for {
			select {
			case ev, ok := <-evCh:
				if !ok {
					break drain
				}
				switch ev.Kind {
				case DriverEventText:
					text.WriteString(ev.Text)
					e.emit(sink, schema.ChatEvent{Kind: schema.EventText, Text: ev.Text})
				case DriverEventToolCall:
					calls = append(calls, ev.ToolCall)
				case DriverEventEndOfTurn:
					// handled by channel close; nothing to accumulate
				case DriverEventError:
					e.emit(sink, schema.ChatEvent{Kind: schema.EventErrorKind, Error: ev.Err.Error()})
					return ev.Err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if len(calls) == 0 {
			e.emit(sink, schema.ChatEvent{Kind: schema.EventDone})
			return nil
		}

		if text.Len() > 0 {
			messages = append(messages, schema.ChatMessage{Role: schema.RoleAssistant, Content: text.String()})
		}
		messages = append(messages, e.runTools(ctx, turnID, calls, approved, targets, sink)...)
	}

	e.emit(sink, schema.ChatEvent{Kind: schema.EventErrorKind, Error: "maximum steps reached"})
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// resolveTools union-lists tools from every selected server and namespaces
// each one "serverId:toolName" so the model can never invoke a tool
// ambiguously across servers (§4.5 step 1, §9 composite auto-approval key).
func (e *Engine) resolveTools(ctx context.Context, serverIDs []string) ([]schema.NamespacedTool, map[string]toolTarget, error) {
	var tools []schema.NamespacedTool
	targets := make(map[string]toolTarget)

	for _, id := range serverIDs {
		cursor := ""
		for {
			page, err := e.mgr.ListTools(ctx, id, cursor)
			if err != nil {
				return nil, nil, err
			}
			for _, t := range page.Items {
				qualified := id + ":" + t.Name
				tools = append(tools, schema.NamespacedTool{
					QualifiedName: qualified,
					ServerID:      id,
					ToolName:      t.Name,
					Description:   t.Description,
					InputSchema:   t.InputSchema,
				})
				targets[qualified] = toolTarget{serverID: id, toolName: t.Name}
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
	}
	return tools, targets, nil
}

// runTools gates each finalized tool call on the approval policy, dispatches
// approved calls to the client manager in parallel, and returns the
// tool-result messages to feed back into the next iteration. Grounded on the
// teacher's generator.go runTools (parallel dispatch via sync.WaitGroup),
// extended with the approval gate the teacher's loop doesn't have.
func (e *Engine) runTools(ctx context.Context, turnID string, calls []schema.ToolCall, approved map[string]bool, targets map[string]toolTarget, sink chan<- schema.ChatEvent) []schema.ChatMessage {
	results := make([]schema.ChatMessage, len(calls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call schema.ToolCall) {
			defer wg.Done()
			e.emit(sink, schema.ChatEvent{Kind: schema.EventToolCall, ToolCallID: call.ID, ToolName: call.QualifiedName, Arguments: call.Arguments})

			target, known := targets[call.QualifiedName]
			if !known {
				results[i] = deniedMessage(call, fmt.Sprintf("unknown tool %q", call.QualifiedName))
				e.emit(sink, schema.ChatEvent{Kind: schema.EventToolResult, ToolCallID: call.ID, IsError: true, Result: "unknown tool"})
				return
			}

			mu.Lock()
			isApproved := approved[call.QualifiedName]
			mu.Unlock()

			if !isApproved {
				decision, err := e.awaitApproval(ctx, turnID, call, sink)
				if err != nil {
					results[i] = deniedMessage(call, "turn cancelled")
					return
				}
				switch decision {
				case schema.ApprovalDeny:
					e.emit(sink, schema.ChatEvent{Kind: schema.EventToolResult, ToolCallID: call.ID, IsError: true, Result: "user denied"})
					results[i] = deniedMessage(call, "user denied")
					return
				case schema.ApprovalApproveForSession:
					mu.Lock()
					approved[call.QualifiedName] = true
					mu.Unlock()
				}
			}

			onProgress := func(p schema.ProgressParams) {
				e.emit(sink, schema.ChatEvent{
					Kind:       schema.EventToolProgress,
					ToolCallID: call.ID,
					ToolName:   call.QualifiedName,
					Text:       p.Message,
					Progress:   p.Progress,
					Total:      p.Total,
				})
			}
			result, err := e.mgr.CallTool(ctx, target.serverID, target.toolName, json.RawMessage(call.Arguments), onProgress)
			if err != nil {
				e.emit(sink, schema.ChatEvent{Kind: schema.EventToolResult, ToolCallID: call.ID, IsError: true, Result: err.Error()})
				results[i] = deniedMessage(call, err.Error())
				return
			}

			data, _ := json.Marshal(result)
			e.emit(sink, schema.ChatEvent{Kind: schema.EventToolResult, ToolCallID: call.ID, IsError: result.IsError, Result: string(data)})
			results[i] = schema.ChatMessage{Role: schema.RoleTool, ToolCallID: call.ID, Content: string(data)}
		}(i, call)
	}
	wg.Wait()
	return results
}

// awaitApproval publishes tool-approval-request and blocks until Approve
// resolves it or ctx is cancelled.
func (e *Engine) awaitApproval(ctx context.Context, turnID string, call schema.ToolCall, sink chan<- schema.ChatEvent) (schema.ApprovalDecision, error) {
	p := e.registerApproval(turnID, call.ID)
	defer e.clearApproval(turnID, call.ID)

	e.emit(sink, schema.ChatEvent{Kind: schema.EventToolApproval, ToolCallID: call.ID, ToolName: call.QualifiedName, Arguments: call.Arguments})

	select {
	case decision := <-p.resultCh:
		return decision, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// emit forwards ev to the turn's direct subscriber and rebroadcasts it on
// the chat-token hub topic for any other listener (§4.4).
func (e *Engine) emit(sink chan<- schema.ChatEvent, ev schema.ChatEvent) {
	sink <- ev
	e.mgr.PublishChatToken(ev)
}

func deniedMessage(call schema.ToolCall, reason string) schema.ChatMessage {
	data, _ := json.Marshal(schema.ToolCallResult{IsError: true, Content: []schema.ContentItem{{Type: "text", Text: reason}}})
	return schema.ChatMessage{Role: schema.RoleTool, ToolCallID: call.ID, Content: string(data)}
}
