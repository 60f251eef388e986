package changelog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"webshop/internal/model"
)

func testOrder(id int64) model.Order {
	items := []model.OrderItem{{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(100)}}
	return model.Order{
		ID:           id,
		CustomerInfo: model.CustomerInfo{Name: "Jane", Email: "jane@example.com", Address: "Main St 1"},
		Items:        items,
		TotalAmount:  model.SumItems(items),
		OrderDate:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOrderCreated(t *testing.T) {
	e := OrderCreated(testOrder(7))
	if e.Type != TypeOrderCreated || e.Seq != 7 || e.Order.ID != 7 {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.EventID == "" {
		t.Fatalf("missing event id")
	}
	if e.TS != time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Unix() {
		t.Fatalf("bad ts: %d", e.TS)
	}
	if other := OrderCreated(testOrder(7)); other.EventID == e.EventID {
		t.Fatalf("event ids must differ")
	}
	if string(e.Key()) != "7" {
		t.Fatalf("bad key: %s", e.Key())
	}
}

func TestFileWriter_Append(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "orders.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	ctx := context.Background()

	e1 := OrderCreated(testOrder(1))
	e2 := OrderCreated(testOrder(2))
	if err := w.Append(ctx, e1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := w.Append(ctx, e2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var got []Entry
	for s.Scan() {
		var e Entry
		if err := json.Unmarshal(s.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 lines, got %d", len(got))
	}
	if got[0].EventID != e1.EventID || got[1].Seq != 2 {
		t.Fatalf("mismatch: %+v", got)
	}
	if !got[0].Order.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("bad total: %s", got[0].Order.TotalAmount)
	}

	n, err := w.Lines()
	if err != nil || n != 2 {
		t.Fatalf("Lines = %d, %v", n, err)
	}
	if err := w.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := w.Lines(); n != 0 {
		t.Fatalf("want empty file after reset, got %d lines", n)
	}
}

func TestFileWriter_LinesMissingFile(t *testing.T) {
	w, err := NewFileWriter(t.TempDir(), "none.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if n, err := w.Lines(); err != nil || n != 0 {
		t.Fatalf("Lines = %d, %v", n, err)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_Append_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	e := OrderCreated(testOrder(3))
	if err := kw.Append(context.Background(), e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "3" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
	var back Entry
	if err := json.Unmarshal(fk.msgs[0].Value, &back); err != nil || back.EventID != e.EventID {
		t.Fatalf("bad value: %v %+v", err, back)
	}
}

func TestKafkaWriter_PinsPartitionZero(t *testing.T) {
	kw := NewKafkaWriter("localhost:9092", "webshop-orders")
	w, ok := kw.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("unexpected writer type %T", kw.writer)
	}
	for id := int64(1); id <= 20; id++ {
		msg := kafka.Message{Key: OrderCreated(testOrder(id)).Key()}
		if p := w.Balancer.Balance(msg, 0, 1, 2); p != 0 {
			t.Fatalf("order %d balanced to partition %d", id, p)
		}
	}
}

func TestKafkaWriter_Append_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	kw := NewKafkaWriterWith(fk)
	if err := kw.Append(context.Background(), OrderCreated(testOrder(1))); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestMultiAndCountingWriter(t *testing.T) {
	ok := &fakeKafkaWriter{}
	bad := &fakeKafkaWriter{fail: true}
	ctx := context.Background()

	c := NewCountingWriter(NewMultiWriter(NewKafkaWriterWith(ok), Discard{}), 5)
	if err := c.Append(ctx, OrderCreated(testOrder(1))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if c.Offset() != 6 || len(ok.msgs) != 1 {
		t.Fatalf("offset=%d msgs=%d", c.Offset(), len(ok.msgs))
	}

	c = NewCountingWriter(NewMultiWriter(NewKafkaWriterWith(bad), NewKafkaWriterWith(ok)), 0)
	if err := c.Append(ctx, OrderCreated(testOrder(2))); err == nil {
		t.Fatalf("expected error")
	}
	if c.Offset() != 0 {
		t.Fatalf("failed append must not advance offset, got %d", c.Offset())
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("writers after a failure must not be called")
	}
}

// fakeProducer acknowledges or rejects each message through the delivery channel.
type fakeProducer struct {
	msgs       []*ck.Message
	produceErr error
	deliverErr error
}

func (f *fakeProducer) Produce(msg *ck.Message, deliveryChan chan ck.Event) error {
	if f.produceErr != nil {
		return f.produceErr
	}
	f.msgs = append(f.msgs, msg)
	report := *msg
	report.TopicPartition.Error = f.deliverErr
	deliveryChan <- &report
	return nil
}

func TestConfluentWriter_Append(t *testing.T) {
	fp := &fakeProducer{}
	w := NewConfluentWriterWith(fp, "webshop-orders")
	if err := w.Append(context.Background(), OrderCreated(testOrder(4))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(fp.msgs) != 1 || *fp.msgs[0].TopicPartition.Topic != "webshop-orders" || string(fp.msgs[0].Key) != "4" {
		t.Fatalf("unexpected messages: %+v", fp.msgs)
	}
	if p := fp.msgs[0].TopicPartition.Partition; p != 0 {
		t.Fatalf("produced to partition %d, want 0", p)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConfluentWriter_Errors(t *testing.T) {
	ctx := context.Background()
	w := NewConfluentWriterWith(&fakeProducer{produceErr: errors.New("queue full")}, "t")
	if err := w.Append(ctx, OrderCreated(testOrder(1))); err == nil {
		t.Fatalf("expected produce error")
	}
	w = NewConfluentWriterWith(&fakeProducer{deliverErr: errors.New("broker down")}, "t")
	if err := w.Append(ctx, OrderCreated(testOrder(1))); err == nil {
		t.Fatalf("expected delivery error")
	}
}
