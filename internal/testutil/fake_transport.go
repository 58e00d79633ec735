package testutil

import (
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"
)

// FakeReply is the scripted answer for one URL.
type FakeReply struct {
	StatusCode int
	Err        error
	Delay      time.Duration
}

// FakeTransport is an http.RoundTripper that answers from a script and
// records how many requests were in flight at once.
// URLs without a scripted reply fail with a refused connection.
type FakeTransport struct {
	mu          sync.Mutex
	replies     map[string]FakeReply
	calls       []string
	inflight    int
	maxInflight int
}

// NewFakeTransport creates an empty fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{replies: make(map[string]FakeReply)}
}

// Set scripts the reply for rawURL.
func (f *FakeTransport) Set(rawURL string, reply FakeReply) *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[normalize(rawURL)] = reply
	return f
}

// RoundTrip implements http.RoundTripper.
func (f *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := normalize(req.URL.String())

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	reply, ok := f.replies[key]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if !ok {
		reply = FakeReply{Err: ConnectionRefused()}
	}

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	if reply.Err != nil {
		return nil, reply.Err
	}

	return &http.Response{
		StatusCode: reply.StatusCode,
		Status:     http.StatusText(reply.StatusCode),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("body")),
		Request:    req,
	}, nil
}

// Calls returns the URLs requested so far, in arrival order.
func (f *FakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times rawURL was requested.
func (f *FakeTransport) CallCount(rawURL string) int {
	key := normalize(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

// MaxInflight returns the highest number of concurrent requests observed.
func (f *FakeTransport) MaxInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// ConnectionRefused returns the error a dialer reports for a refused connection.
func ConnectionRefused() error {
	return &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}
}

func normalize(rawURL string) string {
	return strings.TrimSuffix(rawURL, "/")
}
