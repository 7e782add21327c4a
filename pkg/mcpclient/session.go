// Package mcpclient speaks MCP over one transport.Transport (§4.2). A
// Session performs the handshake, tracks negotiated capabilities, and
// correlates outbound JSON-RPC requests with their responses; it knows
// nothing about the server registry or reconnection policy above it — that
// is the client manager's job (§4.3, §9: explicit message passing instead
// of callback closures).
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	transport "github.com/MCPJam/inspector-sub007/pkg/transport"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// NotificationSink receives server-initiated notifications (no id) in
// arrival order (§5).
type NotificationSink func(method string, params json.RawMessage)

// ServerRequestSink receives server-initiated requests (method + id), such
// as elicitation/create. The manager must eventually call
// Session.Respond(id, ...) to answer it (§4.2).
type ServerRequestSink func(id string, method string, params json.RawMessage)

// ProgressFunc receives incremental notifications/progress frames
// correlated to one outstanding CallTool invocation (§4.2, §4.5 step 3).
type ProgressFunc func(schema.ProgressParams)

// waiter is the per-request correlation entry: a response wakes it exactly
// once, or it fails with SessionClosed/Cancelled.
type waiter struct {
	resultCh chan waiterResult
}

type waiterResult struct {
	result json.RawMessage
	err    *schema.RPCError
}

// Session is one live MCP connection to one server (§3 GLOSSARY).
type Session struct {
	serverID   string
	tr         transport.Transport
	clientInfo schema.ClientInfo

	reqID atomic.Int64

	mu         sync.Mutex
	waiters    map[string]*waiter
	caps       []schema.Capability
	serverInfo schema.ServerInfo
	protoVer   string
	closed     bool

	notifyMu sync.Mutex
	notifyFn NotificationSink
	serverFn ServerRequestSink

	progressMu sync.Mutex
	progress   map[string]ProgressFunc

	done chan struct{}
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New wraps an already-open transport in a Session and starts its reader.
// Callers must call Initialize before issuing any other operation.
func New(serverID string, tr transport.Transport, clientInfo schema.ClientInfo) *Session {
	s := &Session{
		serverID:   serverID,
		tr:         tr,
		clientInfo: clientInfo,
		waiters:    make(map[string]*waiter),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// SubscribeNotifications registers the sink for server-initiated
// notifications and requests (§4.2).
func (s *Session) SubscribeNotifications(fn NotificationSink, serverFn ServerRequestSink) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifyFn = fn
	s.serverFn = serverFn
}

// Caps returns the capabilities negotiated during Initialize.
func (s *Session) Caps() []schema.Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.Capability(nil), s.caps...)
}

// ProtocolVersion / ServerInfo return the negotiated handshake values.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protoVer
}

func (s *Session) ServerInfo() schema.ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// HasCapability reports whether the negotiated capability set includes c.
func (s *Session) HasCapability(c schema.Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.caps {
		if v == c {
			return true
		}
	}
	return false
}

// Initialize performs the MCP handshake (§4.2).
func (s *Session) Initialize(ctx context.Context, protocolVersion string) error {
	result, err := s.call(ctx, schema.MethodInitialize, schema.InitializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      s.clientInfo,
		Capabilities: map[string]any{
			"roots":       map[string]any{},
			"sampling":    map[string]any{},
			"elicitation": map[string]any{},
		},
	})
	if err != nil {
		return err
	}

	var initResult schema.InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		return fmt.Errorf("mcpclient: malformed initialize result: %w", err)
	}
	if initResult.ProtocolVersion == "" {
		return ErrProtocolMismatch
	}

	s.mu.Lock()
	s.caps = initResult.CapSet()
	s.serverInfo = initResult.ServerInfo
	s.protoVer = initResult.ProtocolVersion
	s.mu.Unlock()

	return s.notify(ctx, schema.MethodInitialized, nil)
}

// ListTools / ListResources / ListPrompts forward to the server verbatim
// (§4.2), passing the pagination cursor through unmodified.
func (s *Session) ListTools(ctx context.Context, cursor string) (schema.Page[schema.ToolMeta], error) {
	var page schema.Page[schema.ToolMeta]
	result, err := s.call(ctx, schema.MethodListTools, schema.ListParams{Cursor: cursor})
	if err != nil {
		return page, err
	}
	err = json.Unmarshal(result, &page)
	return page, err
}

func (s *Session) ListResources(ctx context.Context, cursor string) (schema.Page[schema.ResourceMeta], error) {
	var page schema.Page[schema.ResourceMeta]
	result, err := s.call(ctx, schema.MethodListResources, schema.ListParams{Cursor: cursor})
	if err != nil {
		return page, err
	}
	err = json.Unmarshal(result, &page)
	return page, err
}

func (s *Session) ListPrompts(ctx context.Context, cursor string) (schema.Page[schema.PromptMeta], error) {
	var page schema.Page[schema.PromptMeta]
	result, err := s.call(ctx, schema.MethodListPrompts, schema.ListParams{Cursor: cursor})
	if err != nil {
		return page, err
	}
	err = json.Unmarshal(result, &page)
	return page, err
}

// CallTool sends tools/call. A task-result envelope (TaskID set) is
// surfaced distinctly from a normal content result (§4.2). When onProgress
// is non-nil, the call carries a progressToken and onProgress is invoked
// from the read loop for every notifications/progress frame the server
// correlates to it, until the call returns.
func (s *Session) CallTool(ctx context.Context, name string, args json.RawMessage, onProgress ProgressFunc) (schema.ToolCallResult, error) {
	var out schema.ToolCallResult
	id := s.reqID.Add(1)
	idKey := fmt.Sprintf("%d", id)

	params := schema.CallToolParams{Name: name, Arguments: args}
	if onProgress != nil {
		params.Meta = &schema.RequestMeta{ProgressToken: idKey}
		s.registerProgress(idKey, onProgress)
		defer s.clearProgress(idKey)
	}

	result, err := s.callWithID(ctx, id, schema.MethodCallTool, params)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(result, &out)
	return out, err
}

func (s *Session) registerProgress(token string, fn ProgressFunc) {
	s.progressMu.Lock()
	if s.progress == nil {
		s.progress = make(map[string]ProgressFunc)
	}
	s.progress[token] = fn
	s.progressMu.Unlock()
}

func (s *Session) clearProgress(token string) {
	s.progressMu.Lock()
	delete(s.progress, token)
	s.progressMu.Unlock()
}

func (s *Session) dispatchProgress(params json.RawMessage) {
	var p schema.ProgressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	s.progressMu.Lock()
	fn := s.progress[p.ProgressToken]
	s.progressMu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// ReadResource / GetPrompt forward to the server.
func (s *Session) ReadResource(ctx context.Context, uri string) ([]schema.ContentItem, error) {
	var out struct {
		Contents []schema.ContentItem `json:"contents"`
	}
	result, err := s.call(ctx, schema.MethodReadResource, schema.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(result, &out)
	return out.Contents, err
}

func (s *Session) GetPrompt(ctx context.Context, name string, args json.RawMessage) ([]schema.ContentItem, error) {
	var out struct {
		Messages []schema.ContentItem `json:"messages"`
	}
	result, err := s.call(ctx, schema.MethodGetPrompt, schema.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(result, &out)
	return out.Messages, err
}

// Ping round-trips ping and returns the elapsed duration.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := s.call(ctx, schema.MethodPing, nil)
	return time.Since(start), err
}

// SetLogLevel forwards logging/setLevel if the server advertises the
// logging capability, else fails with FeatureNotSupported (§4.2).
func (s *Session) SetLogLevel(ctx context.Context, level string) error {
	if !s.HasCapability(schema.CapLogging) {
		return ErrFeatureNotSupported
	}
	_, err := s.call(ctx, schema.MethodSetLogLevel, schema.SetLogLevelParams{Level: level})
	return err
}

// Respond answers a server-initiated request previously delivered to the
// ServerRequestSink (§4.2).
func (s *Session) Respond(ctx context.Context, requestID string, result any, rpcErr *schema.RPCError) error {
	idRaw := json.RawMessage(requestID)
	msg := &schema.RPCMessage{Version: schema.RPCVersion, ID: &idRaw}
	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		msg.Result = data
	}
	return s.tr.Send(ctx, msg)
}

// Close closes the transport without sending any message to the server.
// All outstanding waiters fail with SessionClosed (§4.2).
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w.resultCh <- waiterResult{err: &schema.RPCError{Code: schema.RPCErrorInternalError, Message: "session closed"}}
	}
	close(s.done)
	return s.tr.Close()
}

// Done is closed when the session shuts down (reader exit or explicit Close).
func (s *Session) Done() <-chan struct{} { return s.done }

// LastError surfaces the transport's diagnostic text on unexpected close.
func (s *Session) LastError() string { return s.tr.LastError() }

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return s.callWithID(ctx, s.reqID.Add(1), method, params)
}

// callWithID is call with a caller-chosen request id, so CallTool can embed
// the id as a progressToken in params before the request is built.
func (s *Session) callWithID(ctx context.Context, id int64, method string, params any) (json.RawMessage, error) {
	req, err := schema.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	idKey := fmt.Sprintf("%d", id)

	w := &waiter{resultCh: make(chan waiterResult, 1)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.waiters[idKey] = w
	s.mu.Unlock()

	cleanup := func() {
		s.mu.Lock()
		delete(s.waiters, idKey)
		s.mu.Unlock()
	}

	if err := s.tr.Send(ctx, req); err != nil {
		cleanup()
		return nil, err
	}

	select {
	case res := <-w.resultCh:
		cleanup()
		if res.err != nil {
			return nil, res.err
		}
		return res.result, nil
	case <-ctx.Done():
		cleanup()
		// Best-effort cancellation notice to the peer (§4.3).
		_ = s.notify(context.Background(), schema.MethodCancelRequest, map[string]any{"id": idKey})
		return nil, ErrCancelled
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

func (s *Session) notify(ctx context.Context, method string, params any) error {
	msg, err := schema.NewNotification(method, params)
	if err != nil {
		return err
	}
	return s.tr.Send(ctx, msg)
}

// readLoop pumps inbound frames, waking waiters and fanning out
// notifications/server-requests, until the transport's channel closes.
func (s *Session) readLoop() {
	for msg := range s.tr.Recv() {
		switch msg.Kind() {
		case schema.RPCKindResponse:
			s.mu.Lock()
			w, ok := s.waiters[msg.IDString()]
			if ok {
				delete(s.waiters, msg.IDString())
			}
			s.mu.Unlock()
			if !ok {
				// Unmatched response: logged and dropped (§3 invariants).
				continue
			}
			w.resultCh <- waiterResult{result: msg.Result, err: msg.Error}

		case schema.RPCKindNotification:
			if msg.Method == schema.MethodProgress {
				s.dispatchProgress(msg.Params)
				continue
			}
			s.notifyMu.Lock()
			fn := s.notifyFn
			s.notifyMu.Unlock()
			if fn != nil {
				fn(msg.Method, msg.Params)
			}

		case schema.RPCKindRequest:
			s.notifyMu.Lock()
			fn := s.serverFn
			s.notifyMu.Unlock()
			if fn != nil {
				fn(msg.IDString(), msg.Method, msg.Params)
			}
		}
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		waiters := s.waiters
		s.waiters = nil
		s.mu.Unlock()
		for _, w := range waiters {
			w.resultCh <- waiterResult{err: &schema.RPCError{Code: schema.RPCErrorInternalError, Message: "session closed"}}
		}
		close(s.done)
		return
	}
	s.mu.Unlock()
}
