package manager

import (
	"context"
	"encoding/json"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// notificationSink returns the callback wired into a session at connect
// time. Frames from a stale generation are discarded (§3 invariants).
func (m *Manager) notificationSink(serverID string, generation uint64) func(method string, params json.RawMessage) {
	return func(method string, params json.RawMessage) {
		if !m.currentGeneration(serverID, generation) {
			return
		}
		m.logRPC(serverID, schema.DirectionIn, map[string]any{"method": method, "params": params})
		switch method {
		case schema.MethodToolsListChanged:
			m.hub.Publish("tools-list-changed", map[string]any{"serverId": serverID})
		case schema.MethodLoggingMessage:
			m.hub.Publish("server-log", map[string]any{"serverId": serverID, "params": params})
		}
	}
}

// serverRequestSink returns the callback for server-initiated requests
// (notably elicitation/create). The default behaviour brokers through the
// hub unless SetElicitationHandler installed an override (§4.3).
func (m *Manager) serverRequestSink(e *entry) func(id string, method string, params json.RawMessage) {
	return func(id, method string, params json.RawMessage) {
		if method != schema.MethodElicitationCreate {
			sess := e.getSession()
			if sess != nil {
				_ = sess.Respond(context.Background(), id, nil, &schema.RPCError{
					Code:    schema.RPCErrorMethodNotFound,
					Message: "unsupported server-initiated method: " + method,
				})
			}
			return
		}

		var elicitParams schema.ElicitationCreateParams
		if err := json.Unmarshal(params, &elicitParams); err != nil {
			return
		}

		fn := e.getElicitFn()
		sess := e.getSession()
		if fn == nil {
			fn = m.defaultElicitationHandler
		}

		go func() {
			answer, err := fn(context.Background(), e.snapshot().ID, elicitParams)
			if sess == nil {
				return
			}
			if err != nil {
				_ = sess.Respond(context.Background(), id, nil, &schema.RPCError{
					Code:    schema.RPCErrorInternalError,
					Message: err.Error(),
				})
				return
			}
			_ = sess.Respond(context.Background(), id, answer, nil)
		}()
	}
}

func (m *Manager) currentGeneration(serverID string, generation uint64) bool {
	m.mu.RLock()
	e, ok := m.entries[serverID]
	m.mu.RUnlock()
	return ok && e.generation() == generation
}
