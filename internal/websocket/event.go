package websocket

import (
	"encoding/json"
	"time"
)

// Event is the wire format for realtime notifications pushed to
// connected chama members.
type Event struct {
	// Type identifies the event as "entity.action", e.g. "loan.approved".
	Type string `json:"type"`
	// Entity is the aggregate the event concerns ("loan", "contribution").
	Entity string `json:"entity"`
	// Payload carries the event-specific body.
	Payload any `json:"payload"`
	// Timestamp is when the event was emitted (UTC).
	Timestamp time.Time `json:"timestamp"`
}

const (
	EntityLoan         = "loan"
	EntityContribution = "contribution"

	ActionApproved        = "approved"
	ActionRejected        = "rejected"
	ActionPaymentRecorded = "payment_recorded"
	ActionOverdue         = "overdue"
	ActionDefaulted       = "defaulted"
	ActionRecorded        = "recorded"
)

func newEvent(entity, action string, payload any) Event {
	return Event{
		Type:      entity + "." + action,
		Entity:    entity,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

func NewLoanApprovedEvent(payload any) Event {
	return newEvent(EntityLoan, ActionApproved, payload)
}

func NewLoanRejectedEvent(payload any) Event {
	return newEvent(EntityLoan, ActionRejected, payload)
}

func NewLoanPaymentRecordedEvent(payload any) Event {
	return newEvent(EntityLoan, ActionPaymentRecorded, payload)
}

func NewLoanOverdueEvent(payload any) Event {
	return newEvent(EntityLoan, ActionOverdue, payload)
}

func NewLoanDefaultedEvent(payload any) Event {
	return newEvent(EntityLoan, ActionDefaulted, payload)
}

func NewContributionRecordedEvent(payload any) Event {
	return newEvent(EntityContribution, ActionRecorded, payload)
}

// Marshal serializes the event for transmission over a client connection.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
