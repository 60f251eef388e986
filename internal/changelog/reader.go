package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader replays entries in append order, skipping the first fromOffset.
type Reader interface {
	ReadFrom(ctx context.Context, fromOffset int64, fn func(Entry) error) error
}

type FileReader struct {
	path string
}

func NewFileReader(path string) *FileReader { return &FileReader{path: path} }

func (r *FileReader) ReadFrom(ctx context.Context, fromOffset int64, fn func(Entry) error) error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open changelog: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	var lineNum int64
	for scanner.Scan() {
		lineNum++
		if lineNum <= fromOffset {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return fmt.Errorf("unmarshal line %d: %w", lineNum, err)
		}
		if err := fn(e); err != nil {
			return fmt.Errorf("apply line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan changelog: %w", err)
	}
	return nil
}

// kafkaMessageReader abstracts kafka.Reader for testability.
type kafkaMessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaReader consumes partition 0 of the changelog topic from the start.
// fromOffset is a message index, matching CountingWriter on a single partition.
type KafkaReader struct {
	open func() kafkaMessageReader
	idle time.Duration
}

func NewKafkaReader(bootstrap string, topic string) *KafkaReader {
	brokers := SplitBrokers(bootstrap)
	return &KafkaReader{
		open: func() kafkaMessageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:   brokers,
				Topic:     topic,
				Partition: 0,
				MinBytes:  1,
				MaxBytes:  10e6,
			})
		},
		idle: 20 * time.Second,
	}
}

// NewKafkaReaderWith is only for tests to inject a fake reader.
func NewKafkaReaderWith(r kafkaMessageReader, idle time.Duration) *KafkaReader {
	return &KafkaReader{open: func() kafkaMessageReader { return r }, idle: idle}
}

// ReadFrom stops once the topic has been idle for the configured window.
func (k *KafkaReader) ReadFrom(ctx context.Context, fromOffset int64, fn func(Entry) error) error {
	rd := k.open()
	defer rd.Close()

	var idx int64
	for {
		readCtx, cancel := context.WithTimeout(ctx, k.idle)
		m, err := rd.ReadMessage(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if readCtx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read kafka: %w", err)
		}
		idx++
		if idx <= fromOffset {
			continue
		}
		var e Entry
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return fmt.Errorf("unmarshal message %d: %w", idx, err)
		}
		if err := fn(e); err != nil {
			return fmt.Errorf("apply message %d: %w", idx, err)
		}
	}
}
