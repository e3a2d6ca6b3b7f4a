package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestPublishBetPlaced(t *testing.T) {
	placed := &captureWriter{}
	p := NewKafkaPublisher(placed, &captureWriter{}, nil)
	p.now = func() time.Time { return time.UnixMilli(1700000000000) }

	err := p.PublishBetPlaced(context.Background(), events.BetPlaced{BetID: "b1", GameID: "g1", BetAmount: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(placed.msgs) != 1 || string(placed.msgs[0].Key) != "g1" {
		t.Fatalf("msgs = %+v", placed.msgs)
	}
	var got events.BetPlaced
	if err := json.Unmarshal(placed.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.TsUnixMs != 1700000000000 || got.BetAmount != 500 {
		t.Fatalf("event = %+v", got)
	}
}

func TestPublishBetSettledKeepsTimestamp(t *testing.T) {
	settled := &captureWriter{}
	p := NewKafkaPublisher(&captureWriter{}, settled, nil)
	ts := time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)

	if err := p.PublishBetSettled(context.Background(), events.BetSettled{BetID: "b1", GameID: "g1", Status: "won", Ts: ts}); err != nil {
		t.Fatal(err)
	}
	var got events.BetSettled
	if err := json.Unmarshal(settled.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Ts.Equal(ts) || got.Status != "won" {
		t.Fatalf("event = %+v", got)
	}
}

func TestPublishErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&captureWriter{err: boom}, nil, nil)
	if err := p.PublishBetPlaced(context.Background(), events.BetPlaced{BetID: "b1"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := p.PublishBetSettled(context.Background(), events.BetSettled{BetID: "b1"}); err == nil {
		t.Fatal("expected missing writer error")
	}
}
