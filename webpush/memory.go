package webpush

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

const DEFAULT_MEMORY_ENDPOINT = "https://push.example.invalid/wpush/v2/"

var ErrMemoryPermissionDenied = errors.New("webpush: notification permission denied")

// MemoryBrowser is an in-process Browser. Capability switches and injected
// errors are read on every call; set them before handing the browser out.
// The permission changes when Subscribe grants it, so it is only reachable
// through SetPermission and NotificationPermission.
type MemoryBrowser struct {
	NoServiceWorker    bool
	NoNotifications    bool
	NoPushManager      bool
	EndpointBase       string
	RegisterErr        error
	GetSubscriptionErr error
	SubscribeErr       error
	UnsubscribeErr     error

	mu           sync.Mutex
	permission   Permission
	subscription *Subscription
	scripts      []string
	subscribes   int
	unsubscribes int
}

func NewMemoryBrowser() *MemoryBrowser {
	return &MemoryBrowser{
		EndpointBase: DEFAULT_MEMORY_ENDPOINT,
		permission:   PermissionDefault,
	}
}

func (b *MemoryBrowser) ServiceWorker() (ServiceWorkerContainer, bool) {
	if b.NoServiceWorker {
		return nil, false
	}
	return memoryContainer{b}, true
}

func (b *MemoryBrowser) NotificationPermission() Permission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permission
}

func (b *MemoryBrowser) SetPermission(p Permission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permission = p
}

func (b *MemoryBrowser) SupportsPush() bool {
	return !b.NoPushManager
}

// SetSubscription replaces the current subscription; nil removes it.
func (b *MemoryBrowser) SetSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscription = sub
}

func (b *MemoryBrowser) Subscription() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscription
}

// Scripts returns every script URL passed to Register, in call order.
func (b *MemoryBrowser) Scripts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.scripts...)
}

func (b *MemoryBrowser) Subscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribes
}

func (b *MemoryBrowser) Unsubscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribes
}

type memoryContainer struct {
	b *MemoryBrowser
}

func (c memoryContainer) Register(ctx context.Context, scriptURL string) (Registration, error) {
	c.b.mu.Lock()
	c.b.scripts = append(c.b.scripts, scriptURL)
	c.b.mu.Unlock()

	if c.b.RegisterErr != nil {
		return nil, c.b.RegisterErr
	}
	return memoryRegistration{c.b}, nil
}

func (c memoryContainer) Ready(ctx context.Context) (Registration, error) {
	return memoryRegistration{c.b}, nil
}

type memoryRegistration struct {
	b *MemoryBrowser
}

func (r memoryRegistration) SupportsNotifications() bool {
	return !r.b.NoNotifications
}

func (r memoryRegistration) PushManager() PushManager {
	if r.b.NoPushManager {
		return nil
	}
	return memoryPushManager{r.b}
}

type memoryPushManager struct {
	b *MemoryBrowser
}

func (m memoryPushManager) GetSubscription(ctx context.Context) (*Subscription, error) {
	if m.b.GetSubscriptionErr != nil {
		return nil, m.b.GetSubscriptionErr
	}
	return m.b.Subscription(), nil
}

func (m memoryPushManager) Subscribe(ctx context.Context, opts SubscribeOptions) (*Subscription, error) {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.subscribes++

	if m.b.SubscribeErr != nil {
		return nil, m.b.SubscribeErr
	}
	if m.b.permission == PermissionDenied {
		return nil, ErrMemoryPermissionDenied
	}
	if m.b.subscription != nil {
		return m.b.subscription, nil
	}

	m.b.subscription = &Subscription{
		Endpoint: m.b.EndpointBase + uuid.NewString(),
		Keys: SubscriptionKeys{
			P256DH: uuid.NewString(),
			Auth:   uuid.NewString(),
		},
	}
	m.b.permission = PermissionGranted
	return m.b.subscription, nil
}

func (m memoryPushManager) Unsubscribe(ctx context.Context, sub *Subscription) error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.unsubscribes++

	if m.b.UnsubscribeErr != nil {
		return m.b.UnsubscribeErr
	}
	if m.b.subscription != nil && m.b.subscription.Endpoint == sub.Endpoint {
		m.b.subscription = nil
	}
	return nil
}
