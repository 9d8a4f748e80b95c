package boxcar

import (
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/shinosaki/boxcar-client-go/signer"
	"github.com/shinosaki/boxcar-client-go/store"
	"github.com/shinosaki/boxcar-client-go/webpush"
)

const (
	testHost   = "boxcar-api.io"
	testKey    = "K"
	testSecret = "S"
	testToken  = "tok-123"
)

var testNow = time.Unix(1700000000, 500*int64(time.Millisecond))

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type cannedResponse struct {
	status int
	body   string
}

// recorder answers every request with 200 "{}" unless a canned response is
// set for "METHOD /path".
type recorder struct {
	t        *testing.T
	signer   *signer.Signer
	mu       sync.Mutex
	requests []recordedRequest
	canned   map[string]cannedResponse
}

func newRecorder(t *testing.T) (*recorder, *http.Client) {
	rec := &recorder{t: t, signer: signer.New(nil), canned: make(map[string]cannedResponse)}

	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(rec.respond)
	return rec, &http.Client{Transport: transport}
}

func (r *recorder) on(method, path string, status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canned[method+" "+path] = cannedResponse{status, body}
}

func (r *recorder) respond(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		require.NoError(r.t, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   string(body),
	})

	// every request must carry a valid signature over what was sent
	want := r.signer.Sign(req.Method, testHost, req.URL.Path, string(body), testSecret)
	if got := req.URL.Query().Get("signature"); got != want {
		r.t.Errorf("%s %s: signature = %q, want %q", req.Method, req.URL.Path, got, want)
	}
	if got := req.URL.Query().Get("clientkey"); got != testKey {
		r.t.Errorf("%s %s: clientkey = %q, want %q", req.Method, req.URL.Path, got, testKey)
	}

	canned, ok := r.canned[req.Method+" "+req.URL.Path]
	if !ok {
		canned = cannedResponse{http.StatusOK, "{}"}
	}
	return httpmock.NewStringResponse(canned.status, canned.body), nil
}

func (r *recorder) Requests() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func testConfig(t *testing.T, opts ...ConfigOption) *Config {
	t.Helper()

	creds, err := NewCredentials(testKey, testSecret, "")
	require.NoError(t, err)
	host, err := NewPushHost(testHost, "", 0)
	require.NoError(t, err)

	opts = append([]ConfigOption{
		WithPushHost(host),
		WithAppVersion("0.0.1"),
		WithOSVersion("linux amd64"),
		WithDeviceName("Go test"),
	}, opts...)

	cfg, err := NewConfig(creds, "./service-worker.js", opts...)
	require.NoError(t, err)
	return cfg
}

type stageEvent struct {
	Op    Operation
	Stage Stage
	Err   error
}

type harness struct {
	client  *Client
	browser *webpush.MemoryBrowser
	flags   *store.Memory
	rec     *recorder
	events  []stageEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		browser: webpush.NewMemoryBrowser(),
		flags:   store.NewMemory(),
	}
	var httpClient *http.Client
	h.rec, httpClient = newRecorder(t)

	h.client = New(testConfig(t), h.browser, h.flags,
		WithHTTPClient(httpClient),
		WithClock(func() time.Time { return testNow }),
		WithStageObserver(func(op Operation, stage Stage, err error) {
			h.events = append(h.events, stageEvent{op, stage, err})
		}),
	)
	return h
}

func (h *harness) subscribed() *webpush.Subscription {
	sub := &webpush.Subscription{Endpoint: "https://push.example/wpush/v2/" + testToken}
	h.browser.SetSubscription(sub)
	return sub
}

func (h *harness) setRegistered(t *testing.T, registered bool) {
	value := "false"
	if registered {
		value = "true"
	}
	require.NoError(t, h.flags.Set(REGISTERED_KEY, value))
}

func (h *harness) stages() []Stage {
	stages := make([]Stage, 0, len(h.events))
	for _, e := range h.events {
		stages = append(stages, e.Stage)
	}
	return stages
}
