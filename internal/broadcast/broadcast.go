// Package broadcast fans out entity-change notifications to live viewers.
//
// The hub is a wake-up signal, not an event log: connected sessions get
// every notification at least once, disconnected ones get nothing and
// must re-fetch full state on reconnect.
package broadcast

import "time"

// Kind tags a change notification with the mutated entity kind.
type Kind string

// Entity kinds.
const (
	KindService  Kind = "service"
	KindIncident Kind = "incident"
)

// Action describes what happened to the entity.
type Action string

// Actions.
const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionResolved Action = "resolved"
	ActionDeleted  Action = "deleted"
)

// Event is a change notification payload sent to subscribers.
type Event struct {
	Kind   Kind      `json:"kind"`
	Action Action    `json:"action"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

// Publisher pushes change notifications after successful mutations.
// Publishing is fire-and-forget: it never fails the originating write.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards all events. Used in contexts without live viewers.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}
