// Package sse decodes the blank-line delimited event stream produced by the
// prompt generation backend.
//
// Unlike a line scanner sitting on an io.Reader, the Decoder is push driven:
// callers feed it raw chunks of whatever size the transport delivers and it
// emits complete events, in arrival order, to a Handler. Chunks may split a
// line, a delimiter, or a multi-byte UTF-8 character; the Decoder buffers the
// trailing partial block until the next chunk arrives.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

const (
	// Sentinel is the reserved payload that terminates a stream. It is never
	// delivered as an Event.
	Sentinel = "[DONE]"

	// ChannelAnalysis is the event name carrying image analysis text.
	ChannelAnalysis = "analysis"

	// ChannelPrompt is the event name carrying generated prompt text. Untyped
	// events are routed to this channel.
	ChannelPrompt = "prompt"
)

// Event is a single decoded block of the stream.
type Event struct {
	// Name comes from the "event:" field. An empty string marks an untyped
	// event.
	Name string

	// Payload is the contents of all "data:" lines of the block joined with
	// "\n".
	Payload string
}

// Channel returns the logical output channel for the event: its name, or
// ChannelPrompt when the event is untyped.
func (e Event) Channel() string {
	if e.Name == "" {
		return ChannelPrompt
	}
	return e.Name
}

// Handler receives decoded events. OnEvent is called once per complete block,
// synchronously and in arrival order. OnTerminal is called exactly once per
// decode session, either on the Sentinel or when the input ends.
type Handler interface {
	OnEvent(ev Event)
	OnTerminal()
}

// HandlerFuncs adapts plain functions to a Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Event    func(ev Event)
	Terminal func()
}

func (h HandlerFuncs) OnEvent(ev Event) {
	if h.Event != nil {
		h.Event(ev)
	}
}

func (h HandlerFuncs) OnTerminal() {
	if h.Terminal != nil {
		h.Terminal()
	}
}
