package chat

import (
	"testing"

	core "github.com/MCPJam/inspector-sub007"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return New(nil, core.Config{}, nil, nil)
}

func TestApprove_DeliversDecision(t *testing.T) {
	e := newTestEngine()
	p := e.registerApproval("turn-1", "call-1")

	require.NoError(t, e.Approve("turn-1", "call-1", schema.ApprovalApprove))

	select {
	case got := <-p.resultCh:
		assert.Equal(t, schema.ApprovalApprove, got)
	default:
		t.Fatal("expected a decision to be delivered to resultCh")
	}
}

func TestApprove_DeniedDecision(t *testing.T) {
	e := newTestEngine()
	p := e.registerApproval("turn-2", "call-2")

	require.NoError(t, e.Approve("turn-2", "call-2", schema.ApprovalDeny))

	select {
	case got := <-p.resultCh:
		assert.Equal(t, schema.ApprovalDeny, got)
	default:
		t.Fatal("expected a decision to be delivered to resultCh")
	}
}

func TestApprove_NoPending(t *testing.T) {
	e := newTestEngine()
	err := e.Approve("turn-x", "call-x", schema.ApprovalApprove)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestApprove_AlreadyResolved(t *testing.T) {
	e := newTestEngine()
	e.registerApproval("turn-1", "call-1")

	require.NoError(t, e.Approve("turn-1", "call-1", schema.ApprovalDeny))
	err := e.Approve("turn-1", "call-1", schema.ApprovalApprove)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestClearApproval_RemovesPending(t *testing.T) {
	e := newTestEngine()
	e.registerApproval("turn-1", "call-1")
	e.clearApproval("turn-1", "call-1")

	err := e.Approve("turn-1", "call-1", schema.ApprovalApprove)
	require.Error(t, err)
}
