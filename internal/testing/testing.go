// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/spotui/internal/auth"
)

// Call is one request observed by [FakeRequester].
type Call struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     []byte
}

// Reply is a scripted response. A non-nil Err is returned as is.
type Reply struct {
	Status int
	Body   string
	Err    error
}

// FakeRequester is a scripted stand-in for [auth.TokenManager.AuthorizedRequest].
//
// Replies are keyed by "METHOD /path" without the query string. Unscripted routes answer 404.
type FakeRequester struct {
	mu      sync.Mutex
	replies map[string]Reply
	calls   []Call
}

func NewFakeRequester() *FakeRequester {
	return &FakeRequester{replies: make(map[string]Reply)}
}

// On scripts the reply for method and endpoint.
func (f *FakeRequester) On(method, endpoint string, status int, body string) *FakeRequester {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[method+" "+endpoint] = Reply{Status: status, Body: body}
	return f
}

// Fail scripts a transport-level error.
func (f *FakeRequester) Fail(method, endpoint string, err error) *FakeRequester {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[method+" "+endpoint] = Reply{Err: err}
	return f
}

// Calls returns the requests seen so far.
func (f *FakeRequester) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeRequester) AuthorizedRequest(_ context.Context, endpoint string, opts auth.RequestOptions) (*auth.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	path, rawQuery, _ := strings.Cut(endpoint, "?")
	query, _ := url.ParseQuery(rawQuery)
	for k, vs := range opts.Query {
		query[k] = append(query[k], vs...)
	}

	var body []byte
	if opts.Body != nil {
		body, _ = json.Marshal(opts.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Endpoint: path, Query: query, Body: body})
	reply, ok := f.replies[method+" "+path]
	f.mu.Unlock()

	if !ok {
		reply = Reply{Status: http.StatusNotFound, Body: `{"error":{"status":404,"message":"Not found."}}`}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	if reply.Status < 200 || reply.Status >= 300 {
		return nil, &auth.APIError{Endpoint: endpoint, StatusCode: reply.Status, Body: []byte(reply.Body)}
	}

	data := []byte(reply.Body)
	return &auth.Response{
		StatusCode: reply.Status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       data,
		NoContent:  reply.Status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0,
	}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
