package boxcar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

const DEFAULT_HTTP_TIMEOUT = 30 * time.Second

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPClientConfig struct {
	Timeout time.Duration
	// HTTP2 forces HTTP/2 over TLS.
	HTTP2 bool
}

func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DEFAULT_HTTP_TIMEOUT
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTP2 {
		client.Transport = &http2.Transport{}
	}
	return client
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Dispatcher issues authenticated requests against the configured push host.
type Dispatcher struct {
	cfg    *Config
	signer Signer
	http   Doer
}

func NewDispatcher(cfg *Config, signer Signer, doer Doer) *Dispatcher {
	if doer == nil {
		doer = NewHTTPClient(HTTPClientConfig{})
	}
	return &Dispatcher{cfg: cfg, signer: signer, http: doer}
}

// Do sends body (nil for none) as JSON. Statuses outside [200,300) give an
// *HTTPStatusError.
func (d *Dispatcher) Do(ctx context.Context, method, resource string, body any) (*Response, error) {
	var (
		data    []byte
		reqBody io.Reader
	)
	if body != nil {
		var err error
		if data, err = marshalBody(body); err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
		d.cfg.Logger().Debugf("resource: %s - payload: %s", resource, data)
	}

	url := d.cfg.PushHost().SignedURL(method, resource, data, d.cfg.Credentials(), d.signer)

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	res, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck // best-effort close

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPStatusError{Status: res.StatusCode, StatusText: statusText(res)}
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Header:     res.Header,
		Body:       payload,
	}, nil
}

func statusText(res *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(res.Status, strconv.Itoa(res.StatusCode)))
	if text == "" {
		text = http.StatusText(res.StatusCode)
	}
	return text
}
