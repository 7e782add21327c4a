package chat

import (
	"sync"

	core "github.com/MCPJam/inspector-sub007"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// pendingApproval is one outstanding tool-approval-request, resolvable
// exactly once via Approve — the same sync.Once-guarded-channel shape the
// manager's elicitation broker uses (§4.4).
type pendingApproval struct {
	once     sync.Once
	resultCh chan schema.ApprovalDecision
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Approve resolves a pending tool-approval-request for the given turn and
// tool call. A second call for the same (turnID, toolCallID) fails with
// NotFound.
func (e *Engine) Approve(turnID, toolCallID string, decision schema.ApprovalDecision) error {
	key := turnID + "/" + toolCallID
	e.pendingMu.Lock()
	p, ok := e.pending[key]
	e.pendingMu.Unlock()
	if !ok {
		return core.ErrNotFound.Withf("no pending approval for tool call %q", toolCallID)
	}

	resolved := false
	p.once.Do(func() {
		p.resultCh <- decision
		resolved = true
	})
	if !resolved {
		return core.ErrNotFound.Withf("approval for tool call %q already resolved", toolCallID)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (e *Engine) registerApproval(turnID, toolCallID string) *pendingApproval {
	p := &pendingApproval{resultCh: make(chan schema.ApprovalDecision, 1)}
	key := turnID + "/" + toolCallID
	e.pendingMu.Lock()
	e.pending[key] = p
	e.pendingMu.Unlock()
	return p
}

func (e *Engine) clearApproval(turnID, toolCallID string) {
	key := turnID + "/" + toolCallID
	e.pendingMu.Lock()
	delete(e.pending, key)
	e.pendingMu.Unlock()
}
