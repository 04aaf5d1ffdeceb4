package store

// Action identifies what a change notification describes.
type Action string

const (
	// ActionSnapshot is the first delivery on every subscription: the full
	// matching set at subscription time.
	ActionSnapshot Action = "SNAPSHOT"
	ActionCreate   Action = "CREATE"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
)

// Event is a single backend-level change to one document. Delete events
// carry the key and, when the backend knows it, the last document state.
type Event struct {
	Action     Action
	Collection string
	Key        string
	Doc        map[string]any
}

// Notification is what subscribers receive. The first notification has
// Action == ActionSnapshot and carries Docs; every later one carries a
// single Event in Action/Key/Doc form. Delivery is serialized per
// subscription and in order, but the callback must not assume any
// particular goroutine.
type Notification struct {
	Action     Action
	Collection string
	// Docs is the full matching set. Populated only for ActionSnapshot.
	Docs []map[string]any
	// Key and Doc describe the changed record for non-snapshot actions.
	// Doc is nil for deletes when the final state is unknown.
	Key string
	Doc map[string]any
}

// NotifyFunc consumes notifications for one subscription.
type NotifyFunc func(Notification)
