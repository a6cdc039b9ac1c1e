package searchsync

import "context"

// Action names what a queued update request asks for.
type Action string

const (
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// UpdateRequest is the durable queue payload: an identifier and an
// optional remove flag, nothing else. The consumer reloads the entity
// from the store, so the payload never goes stale while waiting in the
// queue. remove=true means the consumer must delete, never upsert.
type UpdateRequest struct {
	Identifier string `json:"identifier"`
	Remove     bool   `json:"remove,omitempty"`
}

// Action returns the action the request asks for.
func (r UpdateRequest) Action() Action {
	if r.Remove {
		return ActionRemove
	}
	return ActionUpdate
}

// Message is one delivery from the queue.
type Message struct {
	ID   string
	Body []byte
}

// Queue is the durable transport between the producing side and the
// consumer. Put must be safe for concurrent producers.
type Queue interface {
	// Put enqueues one payload.
	Put(ctx context.Context, body []byte) error

	// Open starts a consuming session.
	Open(ctx context.Context) (QueueSession, error)
}

// QueueSession is a consumer's view of the queue. Deliveries stay
// owned by the session until acknowledged; unacknowledged messages are
// redelivered to a later session, giving at-least-once semantics.
type QueueSession interface {
	// Next blocks for the next message. It returns an error wrapping
	// ErrTimeout when the queue stays empty past the poll window, and
	// the context error when ctx is done.
	Next(ctx context.Context) (*Message, error)

	// Ack marks the message as processed. Only acknowledged messages
	// leave the queue permanently.
	Ack(ctx context.Context, msg *Message) error

	Close() error
}
