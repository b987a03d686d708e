package transport

import "context"

// Sender is implemented by everything that can submit a message.
type Sender interface {
	// Send submits msg on behalf of from to every address in to. A nil error
	// means the destination accepted the message.
	Send(ctx context.Context, from string, to []string, msg []byte) error

	// Name identifies the transport in logs and delivery records.
	Name() string
}
