package websocket

// EventPublisher is implemented by anything able to push events to
// a set of recipients. Services depend on this interface rather than
// the concrete hub.
type EventPublisher interface {
	Publish(recipientIDs []string, event Event)
}

// NoOpPublisher discards events. Used in tests and in tools that run
// the services without a realtime layer.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (p *NoOpPublisher) Publish(recipientIDs []string, event Event) {}
