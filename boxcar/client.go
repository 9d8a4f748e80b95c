package boxcar

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shinosaki/boxcar-client-go/signer"
	"github.com/shinosaki/boxcar-client-go/store"
	"github.com/shinosaki/boxcar-client-go/webpush"
)

const (
	REGISTERED_KEY = "registered"

	deviceTokensResource = "/api/device_tokens/"
	pingResource         = "/api/ping/"
	receiveResource      = "/api/receive/"
	tagsResource         = "/api/tags"
)

// Client registers this device with the Boxcar push service and keeps the
// local "registered" flag. Calls must not overlap: two concurrent Register
// calls can both find the flag unset and register twice.
type Client struct {
	cfg      *Config
	browser  webpush.Browser
	flags    store.Store
	signer   Signer
	doer     Doer
	dispatch *Dispatcher
	now      func() time.Time
	observe  StageObserver
}

type Option func(*Client)

func WithHTTPClient(doer Doer) Option {
	return func(c *Client) { c.doer = doer }
}

func WithSigner(s Signer) Option {
	return func(c *Client) { c.signer = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithStageObserver(observe StageObserver) Option {
	return func(c *Client) { c.observe = observe }
}

func New(cfg *Config, browser webpush.Browser, flags store.Store, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		browser: browser,
		flags:   flags,
		signer:  signer.New(nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatch = NewDispatcher(cfg, c.signer, c.doer)
	return c
}

// IsPushEnabled reports the local flag only; the browser is not consulted.
func (c *Client) IsPushEnabled() bool {
	v, ok := c.flags.Get(REGISTERED_KEY)
	return ok && v == "true"
}

// CheckSupported verifies, in order: service worker support, registration
// of the configured worker script, notification support of the worker,
// notification permission, push messaging support.
func (c *Client) CheckSupported(ctx context.Context) error {
	return c.checkSupported(ctx, OpCheckSupported)
}

func (c *Client) checkSupported(ctx context.Context, op Operation) error {
	sw, err := c.serviceWorker(op)
	if err != nil {
		return err
	}

	reg, err := sw.Register(ctx, c.cfg.ServiceWorker())
	if err != nil {
		return c.fail(op, StageRegisterServiceWorker, &ServiceWorkerError{Script: c.cfg.ServiceWorker(), Err: err})
	}
	c.pass(op, StageRegisterServiceWorker)

	if !reg.SupportsNotifications() {
		return c.fail(op, StageNotificationCapability, &UnsupportedBrowserError{Capability: CapabilityNotifications})
	}
	c.pass(op, StageNotificationCapability)

	if c.browser.NotificationPermission() == webpush.PermissionDenied {
		return c.fail(op, StagePermission, &PermissionDeniedError{})
	}
	c.pass(op, StagePermission)

	if !c.browser.SupportsPush() {
		return c.fail(op, StagePushCapability, &UnsupportedBrowserError{Capability: CapabilityPushManager})
	}
	c.pass(op, StagePushCapability)
	return nil
}

// Register subscribes to push when there is no subscription yet and
// registers the device token with tags and username, unless the local flag
// says this was already done.
func (c *Client) Register(ctx context.Context, tags []string, username string) error {
	const op = OpRegister

	sw, err := c.serviceWorker(op)
	if err != nil {
		return err
	}

	payload := NewRegistrationPayload(Device{
		Username:     username,
		DeviceName:   c.cfg.DeviceName(),
		UDID:         c.udid(),
		Tags:         tags,
		AppVersion:   c.cfg.AppVersion(),
		OSVersion:    c.cfg.OSVersion(),
		SenderIDHash: c.signer.Hash(c.cfg.Credentials().SenderID()),
	}, DEFAULT_TTL, c.now())
	c.pass(op, StageBuildPayload)

	if _, err := sw.Register(ctx, c.cfg.ServiceWorker()); err != nil {
		return c.fail(op, StageRegisterServiceWorker, &ServiceWorkerError{Script: c.cfg.ServiceWorker(), Err: err})
	}
	c.pass(op, StageRegisterServiceWorker)

	if err := c.checkSupported(ctx, op); err != nil {
		return err
	}

	_, sub, err := c.readSubscription(ctx, op, sw)
	if IsNotRegistered(err) {
		if err := c.setRegistered(op, false); err != nil {
			return err
		}
		sub, err = c.subscribe(ctx, op, sw)
	}
	if err != nil {
		return err
	}

	token, err := c.token(op, sub)
	if err != nil {
		return err
	}

	if c.IsPushEnabled() {
		c.cfg.Logger().Debug("Already registered. Skip registration.")
		c.pass(op, StageAlreadyRegistered)
		return nil
	}

	if _, err := c.dispatch.Do(ctx, http.MethodPut, deviceTokensResource+token, payload); err != nil {
		return c.fail(op, StageRemoteRegister, err)
	}
	c.pass(op, StageRemoteRegister)

	return c.setRegistered(op, true)
}

// Unregister removes the push subscription and the device token. The local
// flag is cleared even when the browser refuses to unsubscribe or the
// service rejects the delete.
func (c *Client) Unregister(ctx context.Context) error {
	const op = OpUnregister

	if !c.IsPushEnabled() {
		c.pass(op, StageNotRegisteredSkip)
		return nil
	}

	sw, err := c.serviceWorker(op)
	if err != nil {
		return err
	}

	pm, sub, err := c.readSubscription(ctx, op, sw)
	if IsNotRegistered(err) {
		return c.setRegistered(op, false)
	}
	if err != nil {
		return err
	}

	token, err := c.token(op, sub)
	if err != nil {
		return err
	}

	if err := pm.Unsubscribe(ctx, sub); err != nil {
		c.cfg.Logger().Debugw("unsubscribe failed, unregistering anyway", "error", err)
		c.report(op, StageUnsubscribe, err)
	} else {
		c.pass(op, StageUnsubscribe)
	}

	if err := c.setRegistered(op, false); err != nil {
		return err
	}

	if _, err := c.dispatch.Do(ctx, http.MethodDelete, deviceTokensResource+token, nil); err != nil {
		return c.fail(op, StageRemoteUnregister, err)
	}
	c.pass(op, StageRemoteUnregister)
	return nil
}

// Ping marks the origin site as visited.
func (c *Client) Ping(ctx context.Context) error {
	const op = OpPing

	token, err := c.currentToken(ctx, op)
	if err != nil {
		return err
	}

	if _, err := c.dispatch.Do(ctx, http.MethodGet, pingResource+token, nil); err != nil {
		return c.fail(op, StageRemotePing, err)
	}
	c.pass(op, StageRemotePing)
	return nil
}

func (c *Client) SiteVisited(ctx context.Context) error {
	return c.Ping(ctx)
}

// TrackNotification marks notificationID as received.
func (c *Client) TrackNotification(ctx context.Context, notificationID string) error {
	const op = OpTrack

	payload, err := NewNotificationTrackPayload(notificationID, DEFAULT_TTL, c.now())
	if err != nil {
		return c.fail(op, StageBuildPayload, err)
	}
	c.pass(op, StageBuildPayload)

	token, err := c.currentToken(ctx, op)
	if err != nil {
		return err
	}

	if _, err := c.dispatch.Do(ctx, http.MethodPost, receiveResource+token, payload); err != nil {
		return c.fail(op, StageRemoteTrack, err)
	}
	c.pass(op, StageRemoteTrack)
	return nil
}

// GetTags returns the tags of the project as listed by the service.
func (c *Client) GetTags(ctx context.Context) ([]string, error) {
	const op = OpTags

	res, err := c.dispatch.Do(ctx, http.MethodGet, tagsResource, nil)
	if err != nil {
		return nil, c.fail(op, StageRemoteTags, err)
	}
	c.pass(op, StageRemoteTags)

	var tags TagsResponse
	if err := res.JSON(&tags); err != nil {
		return nil, c.fail(op, StageDecode, err)
	}
	c.pass(op, StageDecode)
	return tags.OK, nil
}

func (c *Client) serviceWorker(op Operation) (webpush.ServiceWorkerContainer, error) {
	sw, ok := c.browser.ServiceWorker()
	if !ok || sw == nil {
		return nil, c.fail(op, StageServiceWorkerCapability, &UnsupportedBrowserError{Capability: CapabilityServiceWorker})
	}
	c.pass(op, StageServiceWorkerCapability)
	return sw, nil
}

// readSubscription fails with *NotRegisteredError when there is none.
func (c *Client) readSubscription(ctx context.Context, op Operation, sw webpush.ServiceWorkerContainer) (webpush.PushManager, *webpush.Subscription, error) {
	pm, err := c.pushManager(ctx, op, sw)
	if err != nil {
		return nil, nil, err
	}

	sub, err := pm.GetSubscription(ctx)
	if err == nil && sub == nil {
		err = &NotRegisteredError{}
	}
	if err != nil {
		return nil, nil, c.fail(op, StageReadSubscription, err)
	}
	c.pass(op, StageReadSubscription)
	return pm, sub, nil
}

func (c *Client) subscribe(ctx context.Context, op Operation, sw webpush.ServiceWorkerContainer) (*webpush.Subscription, error) {
	pm, err := c.pushManager(ctx, op, sw)
	if err != nil {
		return nil, err
	}

	sub, err := pm.Subscribe(ctx, webpush.SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: c.cfg.ApplicationServerKey(),
	})
	if err == nil && sub == nil {
		err = errors.New("push manager returned no subscription")
	}
	if err != nil {
		if c.browser.NotificationPermission() == webpush.PermissionDenied {
			return nil, c.fail(op, StageSubscribe, &PermissionDeniedError{})
		}
		return nil, c.fail(op, StageSubscribe, &SubscriptionError{Err: err})
	}
	c.pass(op, StageSubscribe)
	return sub, nil
}

func (c *Client) pushManager(ctx context.Context, op Operation, sw webpush.ServiceWorkerContainer) (webpush.PushManager, error) {
	reg, err := sw.Ready(ctx)
	if err != nil {
		return nil, c.fail(op, StageReadSubscription, &ServiceWorkerError{Script: c.cfg.ServiceWorker(), Err: err})
	}
	pm := reg.PushManager()
	if pm == nil {
		return nil, c.fail(op, StagePushCapability, &UnsupportedBrowserError{Capability: CapabilityPushManager})
	}
	return pm, nil
}

func (c *Client) currentToken(ctx context.Context, op Operation) (string, error) {
	sw, err := c.serviceWorker(op)
	if err != nil {
		return "", err
	}
	_, sub, err := c.readSubscription(ctx, op, sw)
	if err != nil {
		return "", err
	}
	return c.token(op, sub)
}

func (c *Client) token(op Operation, sub *webpush.Subscription) (string, error) {
	token := sub.Token()
	if token == "" {
		return "", c.fail(op, StageDeviceToken, &SubscriptionError{Err: errors.New("endpoint carries no device token: " + sub.Endpoint)})
	}
	c.pass(op, StageDeviceToken)
	return token, nil
}

func (c *Client) setRegistered(op Operation, registered bool) error {
	value := "false"
	if registered {
		value = "true"
	}
	if err := c.flags.Set(REGISTERED_KEY, value); err != nil {
		return c.fail(op, StagePersist, err)
	}
	c.pass(op, StagePersist)
	return nil
}

func (c *Client) udid() string {
	// TODO: derive a stable device identifier when UDIDEnabled is set.
	return ""
}

func (c *Client) pass(op Operation, stage Stage) {
	c.report(op, stage, nil)
}

func (c *Client) fail(op Operation, stage Stage, err error) error {
	c.report(op, stage, err)
	return &StageError{Op: op, Stage: stage, Err: err}
}

func (c *Client) report(op Operation, stage Stage, err error) {
	if err != nil {
		c.cfg.Logger().Debugw("stage failed", "op", op, "stage", stage, "error", err)
	} else {
		c.cfg.Logger().Debugw("stage passed", "op", op, "stage", stage)
	}
	if c.observe != nil {
		c.observe(op, stage, err)
	}
}
