// Package hub fans messages out to websocket clients through a single
// goroutine that owns the client set.
package hub

// Kind is the websocket payload format of a message.
type Kind int

const (
	// KindJSON is a JSON text message, e.g. a classification result.
	KindJSON Kind = iota
	// KindFrame is a binary JPEG frame. Frames are lossy: a client that
	// falls behind skips frames instead of being disconnected.
	KindFrame
)

// Message is one payload delivered to every client.
type Message struct {
	Kind Kind
	Data []byte

	// Retain keeps the message so clients that connect later receive it first.
	Retain bool
}

// JSON wraps pre-encoded JSON.
func JSON(data []byte) Message {
	return Message{Kind: KindJSON, Data: data}
}

// Frame wraps an encoded image.
func Frame(data []byte) Message {
	return Message{Kind: KindFrame, Data: data}
}
