package boxcar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DEFAULT_SENDER_ID = "unknown"
	DEFAULT_SCHEME    = "https"
	DEFAULT_HOST      = "console.boxcar.io"
	DEFAULT_PORT      = 443
)

// Signer computes request signatures and identifier digests.
type Signer interface {
	Sign(method, host, path, body, secret string) string
	Hash(value string) string
}

// Credentials identify a client at the push service. The secret only ever
// leaves the process as a signature.
type Credentials struct {
	clientKey    string
	clientSecret string
	senderID     string
}

type credentialArgs struct {
	ClientKey    string `arg:"clientKey" validate:"required"`
	ClientSecret string `arg:"clientSecret" validate:"required"`
}

// NewCredentials requires a key and a secret. An empty senderID becomes
// DEFAULT_SENDER_ID.
func NewCredentials(clientKey, clientSecret, senderID string) (Credentials, error) {
	if err := validateArgs(credentialArgs{clientKey, clientSecret}); err != nil {
		return Credentials{}, err
	}
	if senderID == "" {
		senderID = DEFAULT_SENDER_ID
	}
	return Credentials{
		clientKey:    clientKey,
		clientSecret: clientSecret,
		senderID:     senderID,
	}, nil
}

func (c Credentials) ClientKey() string    { return c.clientKey }
func (c Credentials) ClientSecret() string { return c.clientSecret }
func (c Credentials) SenderID() string     { return c.senderID }

// PushHost is the network address of the push service.
type PushHost struct {
	host   string
	scheme string
	port   int
}

type pushHostArgs struct {
	Host   string `arg:"host" validate:"required"`
	Scheme string `arg:"scheme" validate:"oneof=http https"`
	Port   int    `arg:"port" validate:"min=0,max=65535"`
}

// NewPushHost builds a host address. An empty scheme means DEFAULT_SCHEME;
// a zero port leaves the port out of built URLs.
func NewPushHost(host, scheme string, port int) (PushHost, error) {
	if scheme == "" {
		scheme = DEFAULT_SCHEME
	}
	if err := validateArgs(pushHostArgs{host, strings.ToLower(scheme), port}); err != nil {
		return PushHost{}, err
	}
	return PushHost{host: host, scheme: scheme, port: port}, nil
}

func DefaultPushHost() PushHost {
	return PushHost{host: DEFAULT_HOST, scheme: DEFAULT_SCHEME, port: DEFAULT_PORT}
}

func (h PushHost) Host() string   { return h.host }
func (h PushHost) Scheme() string { return h.scheme }
func (h PushHost) Port() int      { return h.port }

// NormalizeResource returns resource with exactly one leading slash and no
// trailing slash. An empty resource is "/".
func NormalizeResource(resource string) string {
	resource = strings.Trim(resource, "/")
	return "/" + resource
}

// AuthenticatedURL serializes payload (nil means no body) and builds the
// signed URL for it.
func (h PushHost) AuthenticatedURL(method, resource string, payload any, creds Credentials, signer Signer) (string, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = marshalBody(payload); err != nil {
			return "", err
		}
	}
	return h.SignedURL(method, resource, body, creds, signer), nil
}

// SignedURL builds scheme://host[:port]path?clientkey=..&signature=.. where
// the signature covers method, host, the normalized path and body.
func (h PushHost) SignedURL(method, resource string, body []byte, creds Credentials, signer Signer) string {
	path := NormalizeResource(resource)
	signature := signer.Sign(method, h.host, path, string(body), creds.ClientSecret())

	host := strings.ToLower(h.host)
	if h.port > 0 {
		host += ":" + strconv.Itoa(h.port)
	}

	query := url.Values{}
	query.Set("clientkey", creds.ClientKey())
	query.Set("signature", signature)

	u := url.URL{
		Scheme:   strings.ToLower(h.scheme),
		Host:     host,
		Path:     path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// marshalBody renders v the way a browser's JSON.stringify would: no HTML
// escaping, no trailing newline.
func marshalBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
