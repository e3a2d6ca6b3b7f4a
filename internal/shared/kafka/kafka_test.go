package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestWriteJSON(t *testing.T) {
	w := &captureWriter{}
	if err := WriteJSON(context.Background(), w, "g1", map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "g1" {
		t.Fatalf("msgs = %+v", w.msgs)
	}
	var got map[string]int
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got["n"] != 1 {
		t.Fatalf("value = %s, %v", w.msgs[0].Value, err)
	}
}

func TestWriteJSONRejectsUnencodable(t *testing.T) {
	w := &captureWriter{}
	if err := WriteJSON(context.Background(), w, "k", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
	if len(w.msgs) != 0 {
		t.Fatal("nothing should be written")
	}
}

func TestNewWriterRequiresAllAcks(t *testing.T) {
	w := NewWriter([]string{"a:9092", "b:9092"}, "bet_placed")
	if w.Topic != "bet_placed" || w.RequiredAcks != kafka.RequireAll {
		t.Fatalf("writer = %s %v", w.Topic, w.RequiredAcks)
	}
}
