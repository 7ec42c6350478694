package api

// EventKind identifies the kind of change carried by a push event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is a push message broadcast over the live update channel.
// The store delivers events only to connections authenticated as the
// owner of the affected item.
type Event struct {
	Event   EventKind    `json:"event"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the affected item. Fields the server did not set
// stay undefined so the client merge keeps its local values.
type EventPayload struct {
	Item ItemPatch `json:"item"`
}
