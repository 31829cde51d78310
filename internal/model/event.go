package model

import (
	"strings"
	"time"
)

type EventType string

const (
	EventOpen    EventType = "open"
	EventClick   EventType = "click"
	EventLead    EventType = "lead"
	EventDeposit EventType = "deposit"
	EventApprove EventType = "approve"
	EventReject  EventType = "reject"
	EventHold    EventType = "hold"
)

func (t EventType) String() string { return string(t) }

// ParseEventType normalizes input. Unknown values are passed through as
// custom event types; only an empty string is invalid.
func ParseEventType(s string) (EventType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if s == "sale" {
		return EventDeposit, true
	}
	return EventType(s), true
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Event is an immutable fact about a tracked click, produced by the
// upstream tracker. The engine never mutates it.
type Event struct {
	ClickID    string    `json:"clickid"`
	Type       EventType `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Revenue    Money     `json:"revenue"`
	Country    string    `json:"country"` // 2-letter ISO code or empty
	Device     string    `json:"device,omitempty"`
	IP         string    `json:"ip,omitempty"`
	IsBot      bool      `json:"is_bot,omitempty"`
	Sub1       string    `json:"sub1,omitempty"`
	Sub2       string    `json:"sub2,omitempty"`
	Sub3       string    `json:"sub3,omitempty"`
	Sub4       string    `json:"sub4,omitempty"`
	Sub5       string    `json:"sub5,omitempty"`
	OfferID    string    `json:"offer_id,omitempty"`
	PartnerID  string    `json:"partner_id,omitempty"`
	CampaignID string    `json:"campaign_id,omitempty"`
	FlowID     string    `json:"flow_id,omitempty"`
}

// Ref is the idempotency key of an event: one (clickid, event type) pair
// is processed at most once per dedupe window.
func (e Event) Ref() string {
	return e.ClickID + ":" + string(e.Type)
}
