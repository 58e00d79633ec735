// Package testutil provides test servers and transports for urlcheck.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock site path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSite is a configurable HTTP server with per-path responses.
type MockSite struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount    int
	lastRequestHead http.Header
}

// NewMockSite starts a plain HTTP mock site.
func NewMockSite() *MockSite {
	m := &MockSite{handlers: make(map[string]http.HandlerFunc)}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// NewTLSMockSite starts a mock site that only speaks HTTPS, with a self-signed certificate.
func NewTLSMockSite() *MockSite {
	m := &MockSite{handlers: make(map[string]http.HandlerFunc)}
	m.server = httptest.NewTLSServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockSite) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.lastRequestHead = r.Header.Clone()
	handler, exists := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if exists {
		handler(w, r)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// URL returns the base URL of the site.
func (m *MockSite) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockSite) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path.
func (m *MockSite) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSite) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetRedirect makes path answer with a redirect to target.
func (m *MockSite) SetRedirect(path, target string, code int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, code)
	})
}

// RequestCount returns the number of requests served.
func (m *MockSite) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSite) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHead
}
