package schema

import "time"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ElicitationStatus is the lifecycle state of an ElicitationRecord (§3).
type ElicitationStatus string

const (
	ElicitationOpen      ElicitationStatus = "open"
	ElicitationResponded ElicitationStatus = "responded"
	ElicitationExpired   ElicitationStatus = "expired"
	ElicitationCancelled ElicitationStatus = "cancelled"
)

// ElicitationOutcome is published on the elicitation-closed event; it is a
// finer-grained classification of a ElicitationResponded/Expired/Cancelled
// record for subscribers (§4.4).
type ElicitationOutcome string

const (
	OutcomeAccepted  ElicitationOutcome = "accepted"
	OutcomeDeclined  ElicitationOutcome = "declined"
	OutcomeCancelled ElicitationOutcome = "cancelled"
	OutcomeExpired   ElicitationOutcome = "expired"
)

// ElicitationAction is the action field of a respondToElicitation request.
type ElicitationAction string

const (
	ActionAccept  ElicitationAction = "accept"
	ActionDecline ElicitationAction = "decline"
	ActionCancel  ElicitationAction = "cancel"
)

// ElicitationRecord is created by the manager's default elicitation handler
// when a session's server issues an elicitation/create request (§3).
type ElicitationRecord struct {
	RequestID string            `json:"requestId"`
	ServerID  string            `json:"serverId"`
	Schema    JSONSchema        `json:"schema"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
	Deadline  time.Time         `json:"deadline"`
	Status    ElicitationStatus `json:"status"`
}

// ElicitationOpenEvent is published on the elicitation topic when a record
// is created.
type ElicitationOpenEvent struct {
	RequestID string     `json:"requestId"`
	ServerID  string     `json:"serverId"`
	Schema    JSONSchema `json:"schema"`
	Message   string     `json:"message"`
}

// ElicitationClosedEvent is published exactly once per record, when it is
// resolved by response, cancellation or expiry.
type ElicitationClosedEvent struct {
	RequestID string             `json:"requestId"`
	Outcome   ElicitationOutcome `json:"outcome"`
}

// ElicitationAnswer is the content supplied to respondToElicitation; Content
// is nil for decline/cancel actions.
type ElicitationAnswer struct {
	RequestID string            `json:"requestId"`
	Action    ElicitationAction `json:"action"`
	Content   map[string]any    `json:"content,omitempty"`
}
