package changelog

import (
	"context"
	"encoding/json"
	"fmt"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// confluentProducer is the slice of *ck.Producer the writer needs.
type confluentProducer interface {
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
}

// ConfluentWriter publishes entries to partition 0 through librdkafka with an
// idempotent producer and waits for each delivery report.
type ConfluentWriter struct {
	producer confluentProducer
	topic    string
	close    func()
}

func NewConfluentWriter(bootstrap string, topic string) (*ConfluentWriter, error) {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	return &ConfluentWriter{
		producer: p,
		topic:    topic,
		close: func() {
			_ = p.Flush(5000)
			p.Close()
		},
	}, nil
}

// NewConfluentWriterWith is only for tests to inject a fake producer.
func NewConfluentWriterWith(p confluentProducer, topic string) *ConfluentWriter {
	return &ConfluentWriter{producer: p, topic: topic}
}

func (w *ConfluentWriter) Append(ctx context.Context, e Entry) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	delivery := make(chan ck.Event, 1)
	msg := &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &w.topic, Partition: 0},
		Key:            e.Key(),
		Value:          b,
	}
	if err := w.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("produce: %w", err)
	}
	select {
	case ev := <-delivery:
		if m, ok := ev.(*ck.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ConfluentWriter) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}
