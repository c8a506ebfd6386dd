package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
)

// DefaultTopic is where transaction completion events land.
const DefaultTopic = "transaction_completed"

// Publisher writes domain events to Kafka. A circuit breaker guards the
// broker so a dead cluster fails fast instead of stalling the transfer path.
type Publisher struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kafka-publisher",
			MaxRequests: 3,
			Interval:    2 * time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Publish marshals the event and writes it to the given topic, falling back
// to DefaultTopic when none is given.
func (p *Publisher) Publish(topic string, event any) error {
	if topic == "" {
		topic = DefaultTopic
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(
			context.Background(),
			kafka.Message{Topic: topic, Value: data},
		)
	})
	return err
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
