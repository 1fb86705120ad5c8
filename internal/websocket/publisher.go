package websocket

// EventPublisher is how services announce ledger changes
type EventPublisher interface {
	Publish(event Event)
}

var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher
func (h *Hub) Publish(event Event) {
	h.Broadcast(event)
}
