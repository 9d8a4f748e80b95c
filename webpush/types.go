package webpush

import (
	"context"
	"encoding/json"
	"strings"
)

// https://developer.mozilla.org/docs/Web/API/Notification
type WebPushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Icon  string          `json:"icon"` // icon url
	Data  json.RawMessage `json:"data"` // custom data field
}

// https://developer.mozilla.org/docs/Web/API/Notification/permission_static
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// https://developer.mozilla.org/docs/Web/API/PushManager/subscribe
type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey []byte
}

// https://developer.mozilla.org/docs/Web/API/PushSubscription
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Token returns the device token, the last path segment of the endpoint.
func (s *Subscription) Token() string {
	endpoint := s.Endpoint
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	return endpoint[strings.LastIndex(endpoint, "/")+1:]
}

// Browser exposes the capabilities a push client needs from its host.
type Browser interface {
	// ServiceWorker reports false when service workers are unavailable.
	ServiceWorker() (ServiceWorkerContainer, bool)
	NotificationPermission() Permission
	SupportsPush() bool
}

// https://developer.mozilla.org/docs/Web/API/ServiceWorkerContainer
type ServiceWorkerContainer interface {
	Register(ctx context.Context, scriptURL string) (Registration, error)
	Ready(ctx context.Context) (Registration, error)
}

// https://developer.mozilla.org/docs/Web/API/ServiceWorkerRegistration
type Registration interface {
	SupportsNotifications() bool
	// PushManager is nil when push messaging is unavailable.
	PushManager() PushManager
}

// https://developer.mozilla.org/docs/Web/API/PushManager
type PushManager interface {
	// GetSubscription returns nil without error when there is no subscription.
	GetSubscription(ctx context.Context) (*Subscription, error)
	Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscription, error)
	Unsubscribe(ctx context.Context, sub *Subscription) error
}
