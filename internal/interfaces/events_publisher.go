package interfaces

// EventPublisher emits domain events to the message broker. Implementations
// must be safe for concurrent use; publish failures never affect the outcome
// of the transfer that raised the event.
type EventPublisher interface {
	Publish(topic string, event any) error
}
