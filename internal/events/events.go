// Package events broadcasts marketplace activity to subscribed clients
// over WebSocket. The feed is observability only; dropping a slow
// subscriber never affects ledger or market state.
package events

import "time"

// Type identifies the kind of market event.
type Type string

const (
	TypeSourceVerified Type = "market.source_verified"
	TypeItemPlaced     Type = "market.item_placed"
	TypeItemUnplaced   Type = "market.item_unplaced"
	TypeItemPurchased  Type = "market.item_purchased"
	TypeMarketStats    Type = "market.stats"
)

// Event is one feed message.
type Event struct {
	Type      Type           `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher accepts events for broadcast.
type Publisher interface {
	Publish(evt Event)
}

// NopPublisher discards events. Used in tests.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}

// New builds an event with the current timestamp.
func New(t Type, data map[string]any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}
