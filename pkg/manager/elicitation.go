package manager

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	core "github.com/MCPJam/inspector-sub007"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RespondToElicitation validates the answer against the schema (structural
// validation only — required-property presence — since full JSON Schema
// validation is out of scope for the broker), resolves the waiter exactly
// once, and publishes elicitation-closed (§4.4). A second call for the same
// requestId fails with NotFound, matching respondToElicitation's
// idempotent-with-NotFound contract (§8).
func (m *Manager) RespondToElicitation(ctx context.Context, ans schema.ElicitationAnswer) error {
	m.elicitMu.Lock()
	open, ok := m.elicits[ans.RequestID]
	if !ok {
		m.elicitMu.Unlock()
		return core.ErrNotFound.Withf("elicitation %q", ans.RequestID)
	}
	delete(m.elicits, ans.RequestID)
	m.elicitMu.Unlock()

	var outcome schema.ElicitationOutcome
	switch ans.Action {
	case schema.ActionAccept:
		outcome = schema.OutcomeAccepted
	case schema.ActionDecline:
		outcome = schema.OutcomeDeclined
	case schema.ActionCancel:
		outcome = schema.OutcomeCancelled
	default:
		m.elicitMu.Lock()
		m.elicits[ans.RequestID] = open // put it back; bad request, not resolved
		m.elicitMu.Unlock()
		return core.ErrValidation.Withf("unknown elicitation action %q", ans.Action)
	}

	if outcome == schema.OutcomeAccepted && len(open.record.Schema) > 0 {
		var s struct {
			Required []string `json:"required"`
		}
		if json.Unmarshal([]byte(open.record.Schema), &s) == nil {
			for _, key := range s.Required {
				if _, present := ans.Content[key]; !present {
					m.elicitMu.Lock()
					m.elicits[ans.RequestID] = open // put it back; bad request, not resolved
					m.elicitMu.Unlock()
					return core.ErrValidation.Withf("elicitation answer is missing required property %q", key)
				}
			}
		}
	}

	open.once.Do(func() {
		open.timer.Stop()
		open.resultCh <- elicitResult{answer: ans.Content, outcome: outcome}
	})
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// defaultElicitationHandler is installed on every session unless overridden
// via SetElicitationHandler (§4.3, §4.4 "Elicitation topic special
// semantics"): it allocates a requestId, inserts an open record, publishes
// elicitation-open, and blocks on the resolver with a deadline.
func (m *Manager) defaultElicitationHandler(ctx context.Context, serverID string, params schema.ElicitationCreateParams) (map[string]any, error) {
	requestID := uuid.NewString()
	deadline := m.cfg.ElicitationTimeout
	if deadline <= 0 {
		deadline = 120 * time.Second
	}

	record := schema.ElicitationRecord{
		RequestID: requestID,
		ServerID:  serverID,
		Schema:    params.RequestedSchema,
		Message:   params.Message,
		CreatedAt: time.Now(),
		Deadline:  time.Now().Add(deadline),
		Status:    schema.ElicitationOpen,
	}

	open := &openElicitation{record: record, resultCh: make(chan elicitResult, 1)}

	m.elicitMu.Lock()
	m.elicits[requestID] = open
	m.elicitMu.Unlock()
	if m.elicitations != nil {
		m.elicitations.Add(context.Background(), 1)
	}

	open.timer = time.AfterFunc(deadline, func() {
		m.elicitMu.Lock()
		if _, still := m.elicits[requestID]; still {
			delete(m.elicits, requestID)
		}
		m.elicitMu.Unlock()
		open.once.Do(func() {
			open.resultCh <- elicitResult{outcome: schema.OutcomeExpired}
		})
	})

	m.hub.Publish(TopicElicitation, schema.ElicitationOpenEvent{
		RequestID: requestID,
		ServerID:  serverID,
		Schema:    params.RequestedSchema,
		Message:   params.Message,
	})

	select {
	case res := <-open.resultCh:
		m.hub.Publish(TopicElicitation, schema.ElicitationClosedEvent{RequestID: requestID, Outcome: res.outcome})
		switch res.outcome {
		case schema.OutcomeAccepted:
			return res.answer, nil
		case schema.OutcomeDeclined:
			return nil, errElicitationDeclined
		case schema.OutcomeCancelled:
			return nil, errElicitationCancelled
		default:
			return nil, errElicitationExpired
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var (
	errElicitationDeclined  = jsonRPCErr("elicitation declined by user")
	errElicitationCancelled = jsonRPCErr("elicitation cancelled by user")
	errElicitationExpired   = jsonRPCErr("elicitation deadline expired")
)

type elicitationErr string

func (e elicitationErr) Error() string { return string(e) }

func jsonRPCErr(msg string) error { return elicitationErr(msg) }
