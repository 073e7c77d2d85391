package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (stats, RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// It is the default for components that expose events optionally.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// FuncEmitter adapts a plain function into an Emitter. Handy for tests and
// for the node's stats forwarding.
type FuncEmitter func(Event)

// Emit implements the Emitter interface.
func (f FuncEmitter) Emit(evt Event) {
	if f != nil {
		f(evt)
	}
}
