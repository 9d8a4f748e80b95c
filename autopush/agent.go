package autopush

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shinosaki/boxcar-client-go/webpush"
)

// Agent is a headless webpush.Browser backed by an AutoPush connection.
// It is its own service worker container, registration and push manager.
type Agent struct {
	client    *Client
	connect   func(url string) error
	serverURL string
	statePath string
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	state     *State
	connected bool
}

type AgentOption func(*Agent)

func WithServerURL(url string) AgentOption {
	return func(a *Agent) { a.serverURL = url }
}

func WithLogger(logger *zap.SugaredLogger) AgentOption {
	return func(a *Agent) { a.logger = logger }
}

// NewAgent loads (or creates) the state kept at statePath.
func NewAgent(statePath string, opts ...AgentOption) (*Agent, error) {
	state, err := LoadState(statePath)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		serverURL: MOZILLA_PUSH_SERVICE,
		statePath: statePath,
		logger:    zap.NewNop().Sugar(),
		state:     state,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.client = NewClient(a.logger, DEFAULT_TIMEOUT)
	a.connect = a.client.Connect
	return a, nil
}

func (a *Agent) ServiceWorker() (webpush.ServiceWorkerContainer, bool) {
	return a, true
}

// NotificationPermission is always granted; there is no user to ask.
func (a *Agent) NotificationPermission() webpush.Permission {
	return webpush.PermissionGranted
}

func (a *Agent) SupportsPush() bool {
	return true
}

// Register connects and says hello. The script is not executed.
func (a *Agent) Register(ctx context.Context, scriptURL string) (webpush.Registration, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) Ready(ctx context.Context) (webpush.Registration, error) {
	return a.Register(ctx, "")
}

func (a *Agent) SupportsNotifications() bool {
	return true
}

func (a *Agent) PushManager() webpush.PushManager {
	return a
}

func (a *Agent) GetSubscription(ctx context.Context) (*webpush.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subscriptionLocked(), nil
}

func (a *Agent) Subscribe(ctx context.Context, opts webpush.SubscribeOptions) (*webpush.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sub := a.subscriptionLocked(); sub != nil {
		return sub, nil
	}

	channelID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("autopush: generate channel id: %w", err)
	}

	var key string
	if len(opts.ApplicationServerKey) > 0 {
		key = base64.StdEncoding.EncodeToString(opts.ApplicationServerKey)
	}

	res, err := a.client.Register(ctx, channelID.String(), key)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusOK {
		return nil, fmt.Errorf("autopush: register returned status %d", res.Status)
	}
	if res.ChannelID != channelID.String() {
		return nil, fmt.Errorf("autopush: register answered for channel %q, want %q", res.ChannelID, channelID)
	}

	a.state.ChannelID = channelID.String()
	a.state.Endpoint = res.PushEndpoint
	if err := SaveState(a.statePath, a.state); err != nil {
		return nil, err
	}
	return a.subscriptionLocked(), nil
}

func (a *Agent) Unsubscribe(ctx context.Context, sub *webpush.Subscription) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.ChannelID == "" || sub == nil || sub.Endpoint != a.state.Endpoint {
		return nil
	}

	res, err := a.client.Unregister(ctx, a.state.ChannelID)
	if err != nil {
		return err
	}
	if res.Status != StatusOK {
		return fmt.Errorf("autopush: unregister returned status %d", res.Status)
	}
	if res.ChannelID != a.state.ChannelID {
		return fmt.Errorf("autopush: unregister answered for channel %q, want %q", res.ChannelID, a.state.ChannelID)
	}

	a.state.ChannelID = ""
	a.state.Endpoint = ""
	return SaveState(a.statePath, a.state)
}

// PushMessage is a received notification. Payload is nil for pushes
// without data.
type PushMessage struct {
	ChannelID string
	Version   string
	Payload   *webpush.WebPushPayload
}

// Listen delivers messages to handle until ctx is done or the connection
// closes. Messages that fail to decrypt are logged and skipped; an error
// from handle is logged too.
func (a *Agent) Listen(ctx context.Context, handle func(context.Context, PushMessage) error) error {
	if err := a.ensureConnected(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-a.client.Notifications():
			if !ok {
				return ErrClosed
			}
			msg, err := a.open(n)
			if err != nil {
				a.logger.Warnw("autopush: dropping undecryptable message", "channel", n.ChannelID, "error", err)
				continue
			}
			if err := handle(ctx, msg); err != nil {
				a.logger.Warnw("autopush: message handler failed", "channel", n.ChannelID, "error", err)
			}
		}
	}
}

func (a *Agent) open(n Notification) (PushMessage, error) {
	msg := PushMessage{ChannelID: n.ChannelID, Version: n.Version}
	if n.Data == "" {
		return msg, nil
	}

	a.mu.Lock()
	keys := a.state.Keys
	a.mu.Unlock()

	plaintext, err := keys.Decrypt(n.Data)
	if err != nil {
		return msg, err
	}

	var payload webpush.WebPushPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return msg, fmt.Errorf("autopush: decode payload: %w", err)
	}
	msg.Payload = &payload
	return msg, nil
}

func (a *Agent) ensureConnected(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		return nil
	}

	if err := a.connect(a.serverURL); err != nil {
		return fmt.Errorf("autopush: connect %s: %w", a.serverURL, err)
	}

	var channelIDs []string
	if a.state.ChannelID != "" {
		channelIDs = []string{a.state.ChannelID}
	}

	res, err := a.client.Hello(ctx, a.state.UAID, channelIDs)
	if err != nil {
		return fmt.Errorf("autopush: hello: %w", err)
	}
	if res.Status != StatusOK {
		return fmt.Errorf("autopush: hello returned status %d", res.Status)
	}

	if res.UAID != a.state.UAID {
		// a new UAID invalidates every channel registered under the old one
		if a.state.UAID != "" {
			a.state.ChannelID = ""
			a.state.Endpoint = ""
		}
		a.state.UAID = res.UAID
	}
	if err := SaveState(a.statePath, a.state); err != nil {
		return err
	}

	a.connected = true
	return nil
}

func (a *Agent) subscriptionLocked() *webpush.Subscription {
	if a.state.Endpoint == "" {
		return nil
	}
	return &webpush.Subscription{
		Endpoint: a.state.Endpoint,
		Keys: webpush.SubscriptionKeys{
			P256DH: a.state.Keys.P256DH(),
			Auth:   a.state.Keys.Auth(),
		},
	}
}
