// Package notify defines the boundary between the scheduler and the chat
// transport that delivers notifications and inbound commands.
package notify

import (
	"context"
	"errors"
)

// ErrTransport marks a failure to reach or use the chat transport.
var ErrTransport = errors.New("transport failure")

// PermanentError wraps a transport error that retrying will not fix,
// such as a rejected token or malformed request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Message is one inbound chat message.
type Message struct {
	Text string
	// ReplyTo is the id of the message this one replies to, 0 if none.
	ReplyTo int64
}

// IsReply reports whether the message answers an earlier notification.
func (m Message) IsReply() bool {
	return m.ReplyTo != 0
}

// Batch is the result of one fetch. Next is the cursor to pass to the
// following Fetch once the batch has been fully processed; passing it
// acknowledges everything in this batch.
type Batch struct {
	Messages []Message
	Next     int64
}

// Gateway sends notifications and fetches inbound messages.
type Gateway interface {
	// Send delivers text and returns the id replies will refer to.
	Send(ctx context.Context, text string, markdown bool) (int64, error)
	// Fetch returns messages at or after cursor. Messages are redelivered
	// until a later Fetch passes a cursor beyond them.
	Fetch(ctx context.Context, cursor int64) (Batch, error)
}
