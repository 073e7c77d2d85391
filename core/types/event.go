package types

// Event represents a typed event emitted during state transitions. Attributes
// carry string-rendered payload fields for downstream consumers.
type Event struct {
	Type       string
	Attributes map[string]string
}
