// Package manager implements the client manager (§4.3): the registry of
// client sessions keyed by server id, the dispatcher for every MCP
// operation, and the reconnection supervisor. It is the one process-wide
// singleton besides the event hub (§9).
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	core "github.com/MCPJam/inspector-sub007"
	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	mcpclient "github.com/MCPJam/inspector-sub007/pkg/mcpclient"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	transport "github.com/MCPJam/inspector-sub007/pkg/transport"
	version "github.com/MCPJam/inspector-sub007/pkg/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

const ProtocolVersion = "2025-03-26"

// ElicitationHandler answers a server-initiated elicitation/create request.
// Installed per server via SetElicitationHandler; the default handler
// brokers through the hub (§4.3, §4.4).
type ElicitationHandler func(ctx context.Context, serverID string, params schema.ElicitationCreateParams) (map[string]any, error)

// entry is the manager's private record for one configured server: the
// public snapshot plus the live session handle and serial command queue
// that gives the record table single-writer discipline (§4.3, §5). The
// cmdCh actor serializes writers among themselves, but readers (ListServers,
// GetServer, readySession, the notification sinks) reach into record/
// session/elicitFn directly, so mu guards all three against the writer
// goroutine as well as concurrent readers.
type entry struct {
	mu       sync.RWMutex
	record   schema.ServerRecord
	session  *mcpclient.Session
	cmdCh    chan func(*entry)
	elicitFn ElicitationHandler
}

// snapshot returns a deep-enough copy of the record safe to hand to a
// caller outside the single-writer actor.
func (e *entry) snapshot() *schema.ServerRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.record
	return r.Clone()
}

// mutate runs fn with the entry locked for writing and returns the record
// as it stands afterwards. Called only from the cmdCh-serialized writer
// goroutine, but still takes the lock so concurrent readers never observe
// a torn record.
func (e *entry) mutate(fn func(rec *schema.ServerRecord)) schema.ServerRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.record)
	return e.record
}

func (e *entry) state() schema.ServerState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record.State
}

func (e *entry) generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record.Generation
}

func (e *entry) getSession() *mcpclient.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

func (e *entry) setSession(s *mcpclient.Session) {
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
}

func (e *entry) getElicitFn() ElicitationHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.elicitFn
}

func (e *entry) setElicitFn(fn ElicitationHandler) {
	e.mu.Lock()
	e.elicitFn = fn
	e.mu.Unlock()
}

// Manager owns the set of sessions, routes operations, logs RPC traffic
// and supervises reconnection (§4.3).
type Manager struct {
	cfg    core.Config
	hub    *hub.Hub
	log    *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	toolCalls    metric.Int64Counter
	reconnects   metric.Int64Counter
	elicitations metric.Int64Counter
	rpcLatency   metric.Float64Histogram

	clientInfo schema.ClientInfo

	mu      sync.RWMutex
	entries map[string]*entry

	elicitMu sync.Mutex
	elicits  map[string]*openElicitation

	wg sync.WaitGroup
}

type openElicitation struct {
	record   schema.ElicitationRecord
	resultCh chan elicitResult
	timer    *time.Timer
	once     sync.Once
}

type elicitResult struct {
	answer  map[string]any
	outcome schema.ElicitationOutcome
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a Manager. h must not be nil; a zero cfg is accepted (no
// ambient deadlines, built-in reconnect and elicitation defaults). log
// defaults to slog.Default() when nil (no package-level global logger, §9).
func New(cfg core.Config, h *hub.Hub, log *slog.Logger, tracer trace.Tracer, meter metric.Meter) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("mcpclientmanager")
	}
	m := &Manager{
		cfg:        cfg,
		hub:        h,
		log:        log,
		tracer:     tracer,
		meter:      meter,
		clientInfo: schema.ClientInfo{Name: "mcpjam-inspector", Version: version.Version()},
		entries:    make(map[string]*entry),
		elicits:    make(map[string]*openElicitation),
	}
	if meter != nil {
		m.toolCalls, _ = meter.Int64Counter("mcp.tool_calls")
		m.reconnects, _ = meter.Int64Counter("mcp.reconnects")
		m.elicitations, _ = meter.Int64Counter("mcp.elicitations")
		m.rpcLatency, _ = meter.Float64Histogram("mcp.rpc.latency", metric.WithUnit("s"))
	}
	return m
}

// Close tears down every session. Used on process shutdown (§3 lifecycles).
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.RemoveServer(context.Background(), id)
	}
	m.wg.Wait()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — registry

// AddServer creates a server record in the disconnected state (§4.3).
func (m *Manager) AddServer(ctx context.Context, id string, name string, cfg schema.ServerConfig) (*schema.ServerRecord, error) {
	_, span := m.startSpan(ctx, "AddServer", attribute.String("serverId", id))
	defer span(nil)

	if m.cfg.WebMode {
		if cfg.Kind == schema.TransportStdio {
			return nil, core.ErrForbidden.With("stdio transports are disabled in web mode")
		}
		if cfg.Kind == schema.TransportHTTP {
			if err := checkWebModeURL(cfg.URL); err != nil {
				return nil, err
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[id]; exists {
		return nil, core.ErrConflict.Withf("server %q already exists", id)
	}

	now := time.Now()
	e := &entry{
		record: schema.ServerRecord{
			ID:        id,
			Name:      name,
			Config:    cfg,
			State:     schema.StateDisconnected,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cmdCh: make(chan func(*entry), 16),
	}
	m.entries[id] = e
	m.wg.Add(1)
	go m.runEntry(e)

	return e.snapshot(), nil
}

// ListServers returns a snapshot of every server's current state (§4.3).
// Each record is read through the entry's own lock so a reader never races
// the entry's single-writer goroutine (§4.3, §8 state-consistency).
func (m *Manager) ListServers() []*schema.ServerRecord {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]*schema.ServerRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

// GetServer returns one server's snapshot.
func (m *Manager) GetServer(id string) (*schema.ServerRecord, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

// RemoveServer disconnects then drops the record (§4.3). Removing an id
// that is not registered is a no-op and returns nil.
func (m *Manager) RemoveServer(ctx context.Context, id string) error {
	if err := m.Disconnect(ctx, id); err != nil && !errIsNotFound(err) {
		return err
	}
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if ok {
		close(e.cmdCh)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — connection lifecycle

// Connect drives the record through connecting -> handshaking -> ready
// (§4.3). On success it publishes server-ready on the hub; on failure it
// records lastError and increments retryCount.
func (m *Manager) Connect(ctx context.Context, id string) (*schema.ServerRecord, error) {
	ctx, span := m.startSpan(ctx, "Connect", attribute.String("serverId", id))
	defer func() { span(nil) }()

	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan connectResult, 1)
	select {
	case e.cmdCh <- func(e *entry) { resultCh <- m.doConnect(ctx, e) }:
	case <-ctx.Done():
		return nil, core.ErrCancelled.With(ctx.Err())
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.record, nil
	case <-ctx.Done():
		return nil, core.ErrCancelled.With(ctx.Err())
	}
}

type connectResult struct {
	record *schema.ServerRecord
	err    error
}

// doConnect runs on the entry's serial command goroutine: it is the only
// writer of e.record, but still goes through e.mutate so ListServers/
// GetServer never observe a torn record (§4.3, §5, §8).
func (m *Manager) doConnect(ctx context.Context, e *entry) connectResult {
	rec := e.mutate(func(rec *schema.ServerRecord) {
		rec.State = schema.StateConnecting
		rec.UpdatedAt = time.Now()
	})

	tr, err := transport.Open(ctx, transport.Config{Server: rec.Config, WebMode: m.cfg.WebMode})
	if err != nil {
		return m.failConnect(e, err)
	}

	var generation uint64
	rec = e.mutate(func(rec *schema.ServerRecord) {
		rec.State = schema.StateHandshaking
		rec.Generation++
		generation = rec.Generation
	})

	sess := mcpclient.New(rec.ID, tr, m.clientInfo)
	sess.SubscribeNotifications(
		m.notificationSink(rec.ID, generation),
		m.serverRequestSink(e),
	)

	if err := sess.Initialize(ctx, ProtocolVersion); err != nil {
		_ = sess.Close()
		return m.failConnect(e, err)
	}

	e.setSession(sess)
	rec = e.mutate(func(rec *schema.ServerRecord) {
		rec.State = schema.StateReady
		rec.Caps = sess.Caps()
		rec.ProtocolVersion = sess.ProtocolVersion()
		rec.ServerVersion = sess.ServerInfo().Version
		rec.RetryCount = 0
		rec.LastError = ""
		rec.UpdatedAt = time.Now()
	})

	m.wg.Add(1)
	go m.watchSession(e, sess, generation)

	m.hub.Publish("server-ready", rec.ID)

	return connectResult{record: rec.Clone()}
}

func (m *Manager) failConnect(e *entry, err error) connectResult {
	rec := e.mutate(func(rec *schema.ServerRecord) {
		rec.State = schema.StateFailed
		rec.LastError = err.Error()
		rec.RetryCount++
		rec.UpdatedAt = time.Now()
	})
	m.hub.Publish("server-error", map[string]any{"serverId": rec.ID, "error": err.Error()})
	return connectResult{record: rec.Clone(), err: core.ErrServerUnreachable.With(err)}
}

// watchSession waits for the session to close and, if it was still ready
// and this is still the current generation, drives reconnection with
// exponential backoff (§4.2 reconnection policy, owned by the manager not
// the session).
func (m *Manager) watchSession(e *entry, sess *mcpclient.Session, generation uint64) {
	defer m.wg.Done()
	<-sess.Done()

	resultCh := make(chan struct{}, 1)
	select {
	case e.cmdCh <- func(e *entry) {
		defer func() { resultCh <- struct{}{} }()
		superseded := false
		e.mutate(func(rec *schema.ServerRecord) {
			if rec.Generation != generation || rec.State != schema.StateReady {
				superseded = true // newer generation or explicit disconnect
				return
			}
			rec.State = schema.StateConnecting
			rec.LastError = sess.LastError()
			rec.UpdatedAt = time.Now()
		})
		if !superseded {
			go m.reconnectLoop(e, generation)
		}
	}:
		<-resultCh
	default:
	}
}

// reconnectLoop applies bounded exponential backoff (base 500ms, 2x
// growth, 30s ceiling, ±25% jitter) until ready or failed (§4.2).
func (m *Manager) reconnectLoop(e *entry, generation uint64) {
	base := m.cfg.ReconnectBaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := m.cfg.ReconnectMaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}
	maxAttempts := m.cfg.ReconnectMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	delay := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		jitter := 1 + (rand.Float64()*0.5 - 0.25)
		time.Sleep(time.Duration(float64(delay) * jitter))

		resultCh := make(chan connectResult, 1)
		select {
		case e.cmdCh <- func(e *entry) {
			if e.state() != schema.StateConnecting {
				// a newer generation, explicit reconnect or disconnect
				// already took over; abandon this loop.
				resultCh <- connectResult{err: core.ErrCancelled}
				return
			}
			res := m.doConnect(context.Background(), e)
			if res.err != nil {
				// stay in connecting so the next attempt is not mistaken
				// for a takeover.
				e.mutate(func(rec *schema.ServerRecord) { rec.State = schema.StateConnecting })
			}
			resultCh <- res
		}:
		default:
			return
		}
		res := <-resultCh
		if errors.Is(res.err, core.ErrCancelled) {
			return
		}
		if m.reconnects != nil {
			m.reconnects.Add(context.Background(), 1)
		}
		if res.err == nil {
			return
		}
		delay = min(delay*2, max)
	}

	select {
	case e.cmdCh <- func(e *entry) {
		e.mutate(func(rec *schema.ServerRecord) {
			if rec.State != schema.StateConnecting {
				return
			}
			rec.State = schema.StateFailed
			rec.UpdatedAt = time.Now()
		})
	}:
	default:
	}
}

// Disconnect closes the session; state -> disconnected; the record stays.
func (m *Manager) Disconnect(ctx context.Context, id string) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	resultCh := make(chan error, 1)
	select {
	case e.cmdCh <- func(e *entry) {
		if sess := e.getSession(); sess != nil {
			_ = sess.Close()
			e.setSession(nil)
		}
		e.mutate(func(rec *schema.ServerRecord) {
			rec.State = schema.StateDisconnected
			rec.UpdatedAt = time.Now()
		})
		resultCh <- nil
	}:
	case <-ctx.Done():
		return core.ErrCancelled.With(ctx.Err())
	}
	return <-resultCh
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS — operations

// SetElicitationHandler installs a per-session request handler; nil
// restores the default hub-brokered handler (§4.3).
func (m *Manager) SetElicitationHandler(id string, fn ElicitationHandler) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.setElicitFn(fn)
	return nil
}

// PublishXRay republishes a chat engine X-Ray payload on the xray topic
// (§4.4, §4.5 step 2). The manager owns the hub so the chat engine never
// needs a direct hub handle.
func (m *Manager) PublishXRay(ev schema.XRayEvent) {
	m.hub.Publish(TopicXRay, ev)
}

// PublishChatToken republishes one chat stream event on the chat-token topic
// for subscribers other than the turn's direct SSE response (§4.4).
func (m *Manager) PublishChatToken(ev schema.ChatEvent) {
	m.hub.Publish(TopicChatToken, ev)
}

// ListTools dispatches listTools to the named server's session.
func (m *Manager) ListTools(ctx context.Context, id, cursor string) (schema.Page[schema.ToolMeta], error) {
	var page schema.Page[schema.ToolMeta]
	sess, err := m.readySession(id)
	if err != nil {
		return page, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "ListTools", attribute.String("serverId", id))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "tools/list", id, time.Now())
	page, err = sess.ListTools(ctx, cursor)
	return page, err
}

func (m *Manager) ListResources(ctx context.Context, id, cursor string) (schema.Page[schema.ResourceMeta], error) {
	var page schema.Page[schema.ResourceMeta]
	sess, err := m.readySession(id)
	if err != nil {
		return page, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "ListResources", attribute.String("serverId", id))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "resources/list", id, time.Now())
	page, err = sess.ListResources(ctx, cursor)
	return page, err
}

func (m *Manager) ListPrompts(ctx context.Context, id, cursor string) (schema.Page[schema.PromptMeta], error) {
	var page schema.Page[schema.PromptMeta]
	sess, err := m.readySession(id)
	if err != nil {
		return page, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "ListPrompts", attribute.String("serverId", id))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "prompts/list", id, time.Now())
	page, err = sess.ListPrompts(ctx, cursor)
	return page, err
}

// CallTool dispatches a tool call, tagging the RPC log with serverId and
// direction (§4.3). onProgress, when non-nil, is invoked for every
// notifications/progress frame the session correlates to this call (§4.2,
// §4.5 step 3); pass nil where nothing can consume incremental progress
// (e.g. the non-streaming HTTP edge).
func (m *Manager) CallTool(ctx context.Context, id, name string, args json.RawMessage, onProgress mcpclient.ProgressFunc) (result schema.ToolCallResult, err error) {
	sess, err := m.readySession(id)
	if err != nil {
		return result, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "CallTool", attribute.String("serverId", id), attribute.String("tool", name))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "tools/call", id, time.Now())

	m.logRPC(id, schema.DirectionOut, map[string]any{"method": "tools/call", "name": name})
	if m.toolCalls != nil {
		m.toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("server", id)))
	}
	result, err = sess.CallTool(ctx, name, args, onProgress)
	m.logRPC(id, schema.DirectionIn, map[string]any{"method": "tools/call", "result": result})
	return result, err
}

func (m *Manager) ReadResource(ctx context.Context, id, uri string) ([]schema.ContentItem, error) {
	sess, err := m.readySession(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "ReadResource", attribute.String("serverId", id))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "resources/read", id, time.Now())
	items, err := sess.ReadResource(ctx, uri)
	return items, err
}

func (m *Manager) GetPrompt(ctx context.Context, id, name string, args json.RawMessage) ([]schema.ContentItem, error) {
	sess, err := m.readySession(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	ctx, span := m.startSpan(ctx, "GetPrompt", attribute.String("serverId", id))
	defer func() { span(err) }()
	defer m.recordLatency(ctx, "prompts/get", id, time.Now())
	items, err := sess.GetPrompt(ctx, name, args)
	return items, err
}

func (m *Manager) Ping(ctx context.Context, id string) (time.Duration, error) {
	sess, err := m.readySession(id)
	if err != nil {
		return 0, err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.PingTimeout)
	defer cancel()
	defer m.recordLatency(ctx, "ping", id, time.Now())
	return sess.Ping(ctx)
}

func (m *Manager) SetLogLevel(ctx context.Context, id, level string) error {
	sess, err := m.readySession(id)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	if err := sess.SetLogLevel(ctx, level); err != nil {
		if errors.Is(err, mcpclient.ErrFeatureNotSupported) {
			return core.ErrFeatureNotSupported.With(err)
		}
		return err
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, core.ErrNotFound.Withf("server %q", id)
	}
	return e, nil
}

// readySession validates the session is ready or returns ServerUnreachable
// (§4.3).
func (m *Manager) readySession(id string) (*mcpclient.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	sess := e.getSession()
	if e.state() != schema.StateReady || sess == nil {
		return nil, core.ErrServerUnreachable.Withf("server %q is not connected", id)
	}
	return sess, nil
}

func (m *Manager) runEntry(e *entry) {
	defer m.wg.Done()
	for fn := range e.cmdCh {
		fn(e)
	}
}

// withTimeout wraps ctx with d when d is positive, matching §5's "every
// request carries a parent deadline"; a non-positive duration (the
// zero-value Config default) passes ctx through unchanged.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (m *Manager) recordLatency(ctx context.Context, method, id string, start time.Time) {
	if m.rpcLatency == nil {
		return
	}
	m.rpcLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("server", id), attribute.String("method", method)))
}

func (m *Manager) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

func (m *Manager) logRPC(serverID string, dir schema.RPCDirection, payload any) {
	data, _ := json.Marshal(payload)
	m.hub.Publish(TopicRPCLog, schema.RPCLogEntry{
		ServerID:  serverID,
		Direction: dir,
		Timestamp: time.Now().UnixNano(),
		Message:   data,
	})
}

func checkWebModeURL(raw string) error {
	if len(raw) < 8 || raw[:8] != "https://" {
		return core.ErrForbidden.Withf("web mode requires https URLs, got %q", raw)
	}
	return nil
}

func errIsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
