package autopush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shinosaki/websocket-client-go/websocket"
	"go.uber.org/zap"
)

const (
	MOZILLA_PUSH_SERVICE = "wss://push.services.mozilla.com"

	DEFAULT_TIMEOUT = 5 * time.Second

	notificationBuffer = 16
)

var ErrClosed = errors.New("autopush: connection closed")

// Client speaks the AutoPush websocket protocol. Responses are matched to
// requests by message type, so only one request of each type may be in
// flight at a time.
type Client struct {
	ws      *websocket.WebSocketClient
	send    func(payload any) error
	logger  *zap.SugaredLogger
	timeout time.Duration

	helloChan        chan HelloResponse
	registerChan     chan RegisterResponse
	unregisterChan   chan UnregisterResponse
	notificationChan chan Notification
}

func NewClient(logger *zap.SugaredLogger, timeout time.Duration) *Client {
	c := newClient(logger, timeout)
	c.ws = websocket.NewWebSocketClient(
		nil,
		func(ws *websocket.WebSocketClient, isReconnecting bool) {
			if !isReconnecting {
				c.close()
			}
		},
		func(ws *websocket.WebSocketClient, payload []byte) {
			c.dispatch(payload)
		},
	)
	c.send = c.ws.SendJSON
	return c
}

func newClient(logger *zap.SugaredLogger, timeout time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return &Client{
		logger:           logger,
		timeout:          timeout,
		helloChan:        make(chan HelloResponse, 1),
		registerChan:     make(chan RegisterResponse, 1),
		unregisterChan:   make(chan UnregisterResponse, 1),
		notificationChan: make(chan Notification, notificationBuffer),
	}
}

// Connect dials url, retrying three times two seconds apart.
func (c *Client) Connect(url string) error {
	return c.ws.Connect(url, 3, 2)
}

// Notifications is closed when the connection ends for good.
func (c *Client) Notifications() <-chan Notification {
	return c.notificationChan
}

func (c *Client) Hello(ctx context.Context, uaid string, channelIDs []string) (HelloResponse, error) {
	if channelIDs == nil {
		channelIDs = []string{}
	}
	return request(ctx, c, c.helloChan, MessageHello, HelloRequest{
		Type:       MessageHello,
		UAID:       uaid,
		ChannelIDs: channelIDs,
		UseWebPush: true,
	}, nil)
}

func (c *Client) Register(ctx context.Context, channelID string, vapidKey string) (RegisterResponse, error) {
	return request(ctx, c, c.registerChan, MessageRegister, RegisterRequest{
		Type:      MessageRegister,
		ChannelID: channelID,
		Key:       vapidKey,
	}, func(r RegisterResponse) bool { return r.ChannelID == channelID })
}

func (c *Client) Unregister(ctx context.Context, channelID string) (UnregisterResponse, error) {
	return request(ctx, c, c.unregisterChan, MessageUnregister, UnregisterRequest{
		Type:      MessageUnregister,
		ChannelID: channelID,
	}, func(r UnregisterResponse) bool { return r.ChannelID == channelID })
}

// request sends payload and waits for the response on ch. Responses left
// over from an earlier timed out request, and responses rejected by match,
// are discarded.
func request[T any](ctx context.Context, c *Client, ch chan T, label MessageType, payload any, match func(T) bool) (res T, err error) {
	drain(c, ch, label)

	if err := c.send(payload); err != nil {
		return res, fmt.Errorf("autopush: send %s: %w", label, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return res, ErrClosed
			}
			if match != nil && !match(r) {
				c.logger.Debugw("autopush: dropping stale response", "type", label)
				continue
			}
			return r, nil
		case <-timer.C:
			return res, fmt.Errorf("autopush: %s timeout", label)
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func drain[T any](c *Client, ch chan T, label MessageType) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			c.logger.Debugw("autopush: dropping stale response", "type", label)
		default:
			return
		}
	}
}

func unmarshaler[T any](c *Client, payload []byte, label MessageType) (data *T) {
	if err := json.Unmarshal(payload, &data); err != nil {
		c.logger.Warnw("autopush: failed to unmarshal payload", "type", label, "error", err)
		return nil
	}
	return data
}

// offer hands a response to a waiting request; unsolicited responses are dropped.
func offer[T any](c *Client, ch chan T, v T, label MessageType) {
	select {
	case ch <- v:
	default:
		c.logger.Debugw("autopush: dropping unsolicited response", "type", label)
	}
}

func (c *Client) dispatch(payload []byte) {
	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		c.logger.Warnw("autopush: failed to unmarshal message", "error", err)
		return
	}

	switch message.Type {
	case MessagePing:
		if err := c.send(struct{}{}); err != nil {
			c.logger.Warnw("autopush: ping reply failed", "error", err)
		}

	case MessageHello:
		if data := unmarshaler[HelloResponse](c, payload, MessageHello); data != nil {
			offer(c, c.helloChan, *data, MessageHello)
		}

	case MessageRegister:
		if data := unmarshaler[RegisterResponse](c, payload, MessageRegister); data != nil {
			offer(c, c.registerChan, *data, MessageRegister)
		}

	case MessageUnregister:
		if data := unmarshaler[UnregisterResponse](c, payload, MessageUnregister); data != nil {
			offer(c, c.unregisterChan, *data, MessageUnregister)
		}

	case MessageNotification:
		if data := unmarshaler[Notification](c, payload, MessageNotification); data != nil {
			c.deliver(*data)
		}

	default:
		c.logger.Debugw("autopush: unknown message type", "type", message.Type)
	}
}

// deliver buffers n and acks it. When nobody drains Notifications the
// message is left unacked so the server redelivers it on the next hello.
func (c *Client) deliver(n Notification) {
	select {
	case c.notificationChan <- n:
	default:
		c.logger.Warnw("autopush: notification buffer full, not acking", "channel", n.ChannelID, "version", n.Version)
		return
	}

	err := c.send(Ack{
		Type: MessageAck,
		Updates: []AckUpdate{
			{ChannelID: n.ChannelID, Version: n.Version},
		},
	})
	if err != nil {
		c.logger.Warnw("autopush: ack failed", "channel", n.ChannelID, "error", err)
	}
}

func (c *Client) close() {
	close(c.helloChan)
	close(c.registerChan)
	close(c.unregisterChan)
	close(c.notificationChan)
}
