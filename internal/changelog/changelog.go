package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"webshop/internal/model"
)

// TypeOrderCreated is the only entry type emitted today.
const TypeOrderCreated = "order.created"

// Entry is one changelog record. Seq is the order id, which makes replay
// idempotent: an entry whose order already exists is skipped.
type Entry struct {
	EventID string      `json:"eventId"`
	Type    string      `json:"type"`
	Seq     int64       `json:"seq"`
	Order   model.Order `json:"order"`
	TS      int64       `json:"ts"`
}

// OrderCreated builds the entry for a freshly persisted order.
func OrderCreated(o model.Order) Entry {
	return Entry{
		EventID: uuid.NewString(),
		Type:    TypeOrderCreated,
		Seq:     o.ID,
		Order:   o,
		TS:      o.OrderDate.UTC().Unix(),
	}
}

// Key is the partitioning key used by the Kafka writers.
func (e Entry) Key() []byte { return []byte(strconv.FormatInt(e.Seq, 10)) }

type Writer interface {
	Append(ctx context.Context, e Entry) error
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error { return nil }

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(ctx context.Context, e Entry) error {
	for _, w := range m.writers {
		if err := w.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// CountingWriter tracks how many entries were appended successfully. The
// count is the changelog offset recorded in snapshot manifests.
type CountingWriter struct {
	next Writer
	n    atomic.Int64
}

func NewCountingWriter(next Writer, start int64) *CountingWriter {
	c := &CountingWriter{next: next}
	c.n.Store(start)
	return c
}

func (c *CountingWriter) Append(ctx context.Context, e Entry) error {
	if err := c.next.Append(ctx, e); err != nil {
		return err
	}
	c.n.Add(1)
	return nil
}

func (c *CountingWriter) Offset() int64 { return c.n.Load() }

type FileWriter struct {
	path string
}

func NewFileWriter(dir string, filename string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: filepath.Join(dir, filename)}, nil
}

func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Append(_ context.Context, e Entry) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(&e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Reset truncates the file. Used when state does not outlive the process.
func (w *FileWriter) Reset() error {
	if err := os.WriteFile(w.path, nil, 0o644); err != nil {
		return fmt.Errorf("truncate changelog: %w", err)
	}
	return nil
}

// Lines counts the entries already in the file; a missing file has none.
func (w *FileWriter) Lines() (int64, error) {
	f, err := os.Open(w.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 4<<20)
	var n int64
	for s.Scan() {
		n++
	}
	return n, s.Err()
}

// KafkaWriter publishes entries to a Kafka topic. Pure-Go client (segmentio/kafka-go).
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SplitBrokers turns a comma-separated bootstrap list into broker addresses.
func SplitBrokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(bootstrap)...),
		Topic:        topic,
		Balancer:     PartitionZero{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// PartitionZero sends every message to partition 0. Readers consume that one
// partition and offsets are message indices on it, so writers must not spread.
type PartitionZero struct{}

func (PartitionZero) Balance(kafka.Message, ...int) int { return 0 }

func (k *KafkaWriter) Append(ctx context.Context, e Entry) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: e.Key(), Value: b})
}

// Close releases the underlying kafka.Writer, if there is one.
func (k *KafkaWriter) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
