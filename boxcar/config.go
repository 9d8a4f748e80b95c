package boxcar

import (
	"runtime"

	"go.uber.org/zap"
)

const DEFAULT_APP_VERSION = "unknown"

// Config is everything a Client needs to talk to the push service. It is
// read-only once built.
type Config struct {
	credentials          Credentials
	pushHost             PushHost
	appVersion           string
	osVersion            string
	deviceName           string
	udidEnabled          bool
	serviceWorker        string
	applicationServerKey []byte
	logger               *zap.SugaredLogger
}

type ConfigOption func(*Config)

func WithPushHost(host PushHost) ConfigOption {
	return func(c *Config) { c.pushHost = host }
}

func WithAppVersion(version string) ConfigOption {
	return func(c *Config) { c.appVersion = version }
}

func WithOSVersion(version string) ConfigOption {
	return func(c *Config) { c.osVersion = version }
}

func WithDeviceName(name string) ConfigOption {
	return func(c *Config) { c.deviceName = name }
}

func WithUDIDEnabled(enabled bool) ConfigOption {
	return func(c *Config) { c.udidEnabled = enabled }
}

// WithDebugSink sets the logger receiving request and stage traces.
func WithDebugSink(logger *zap.SugaredLogger) ConfigOption {
	return func(c *Config) { c.logger = logger }
}

// WithApplicationServerKey sets the VAPID key passed to push subscribe.
func WithApplicationServerKey(key []byte) ConfigOption {
	return func(c *Config) { c.applicationServerKey = append([]byte(nil), key...) }
}

type configArgs struct {
	ClientKey     string `arg:"credentials" validate:"required"`
	Host          string `arg:"pushHost" validate:"required"`
	ServiceWorker string `arg:"serviceWorker" validate:"required"`
}

func NewConfig(creds Credentials, serviceWorker string, opts ...ConfigOption) (*Config, error) {
	c := &Config{
		credentials:   creds,
		pushHost:      DefaultPushHost(),
		appVersion:    DEFAULT_APP_VERSION,
		osVersion:     runtime.GOOS + " " + runtime.GOARCH,
		deviceName:    "Go " + runtime.Version(),
		udidEnabled:   true,
		serviceWorker: serviceWorker,
		logger:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}

	if err := validateArgs(configArgs{
		ClientKey:     c.credentials.ClientKey(),
		Host:          c.pushHost.Host(),
		ServiceWorker: c.serviceWorker,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Credentials() Credentials   { return c.credentials }
func (c *Config) PushHost() PushHost         { return c.pushHost }
func (c *Config) AppVersion() string         { return c.appVersion }
func (c *Config) OSVersion() string          { return c.osVersion }
func (c *Config) DeviceName() string         { return c.deviceName }
func (c *Config) UDIDEnabled() bool          { return c.udidEnabled }
func (c *Config) ServiceWorker() string      { return c.serviceWorker }
func (c *Config) Logger() *zap.SugaredLogger { return c.logger }

func (c *Config) ApplicationServerKey() []byte {
	return append([]byte(nil), c.applicationServerKey...)
}
