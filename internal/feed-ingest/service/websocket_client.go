package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/huskybids/pkg/contracts/events"
)

type Publisher interface {
	Publish(ctx context.Context, u events.GameUpdate) error
}

// WSClient reads game updates from the sports feed and republishes the valid
// ones. It reconnects until ctx is done.
type WSClient struct {
	URL            string
	Log            *zap.Logger
	Publisher      Publisher
	ReconnectDelay time.Duration

	OnReceived  func()       // metrics
	OnPublished func()       // metrics
	OnError     func(string) // metrics per phase
}

func (c *WSClient) Start(ctx context.Context) {
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil && ctx.Err() == nil {
			c.Log.Warn("feed connection closed", zap.Error(err))
			c.fail("connect")
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			c.Log.Info("context canceled, stopping feed client")
			return
		case <-t.C:
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to feed", zap.String("url", c.URL))

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.OnReceived != nil {
			c.OnReceived()
		}

		var u events.GameUpdate
		if err := json.Unmarshal(message, &u); err != nil {
			c.Log.Warn("invalid feed message", zap.Error(err))
			c.fail("decode")
			continue
		}
		if err := u.Validate(); err != nil {
			c.Log.Warn("invalid feed update", zap.String("game_id", u.GameID), zap.Error(err))
			c.fail("validate")
			continue
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = time.Now().UTC()
		}
		if err := c.Publisher.Publish(ctx, u); err != nil {
			c.Log.Error("failed to publish game update", zap.String("game_id", u.GameID), zap.Error(err))
			c.fail("publish")
			continue
		}
		if c.OnPublished != nil {
			c.OnPublished()
		}
	}
}

func (c *WSClient) fail(phase string) {
	if c.OnError != nil {
		c.OnError(phase)
	}
}
