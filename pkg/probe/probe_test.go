package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/urlcheck/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", cfg.Timeout)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.UserAgent)
	}
	if cfg.Accept != DefaultAccept {
		t.Errorf("Accept = %q, want default", cfg.Accept)
	}
}

func TestProbe_StatusCodes(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	tests := []struct {
		name       string
		statusCode int
	}{
		{name: "ok", statusCode: http.StatusOK},
		{name: "not found", statusCode: http.StatusNotFound},
		{name: "server error", statusCode: http.StatusInternalServerError},
		{name: "no content", statusCode: http.StatusNoContent},
	}

	p := New(Config{Timeout: 5 * time.Second})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/" + strings.ReplaceAll(tt.name, " ", "-")
			site.SetResponse(path, testutil.MockResponse{StatusCode: tt.statusCode, Body: "payload"})

			out := p.Probe(context.Background(), site.URL()+path)

			if out.Status != StatusOK {
				t.Fatalf("Status = %s, want %s (message %q)", out.Status, StatusOK, out.Message)
			}
			if out.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", out.StatusCode, tt.statusCode)
			}
			if out.Message != MessageOK {
				t.Errorf("Message = %q, want %q", out.Message, MessageOK)
			}
		})
	}
}

func TestProbe_SendsHeaders(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	p := New(Config{Timeout: 5 * time.Second, UserAgent: "urlcheck-test/1.0", Accept: "text/html"})
	p.Probe(context.Background(), site.URL()+"/")

	header := site.LastRequestHeader()
	if got := header.Get("User-Agent"); got != "urlcheck-test/1.0" {
		t.Errorf("User-Agent = %q, want urlcheck-test/1.0", got)
	}
	if got := header.Get("Accept"); got != "text/html" {
		t.Errorf("Accept = %q, want text/html", got)
	}
}

func TestProbe_FollowsRedirects(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	site.SetRedirect("/old", "/gone", http.StatusMovedPermanently)
	site.SetResponse("/gone", testutil.MockResponse{StatusCode: http.StatusNotFound})

	out := New(Config{Timeout: 5 * time.Second}).Probe(context.Background(), site.URL()+"/old")

	if out.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want final status 404", out.StatusCode)
	}
	if site.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", site.RequestCount())
	}
}

func TestProbe_Timeout(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	site.SetResponse("/slow", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 500 * time.Millisecond})

	out := New(Config{Timeout: 50 * time.Millisecond}).Probe(context.Background(), site.URL()+"/slow")

	if out.Status != StatusTimeout {
		t.Fatalf("Status = %s, want %s (message %q)", out.Status, StatusTimeout, out.Message)
	}
	if out.Code() != CodeTimeout {
		t.Errorf("Code() = %q, want %q", out.Code(), CodeTimeout)
	}
}

func TestProbe_ConnectError(t *testing.T) {
	site := testutil.NewMockSite()
	target := site.URL()
	site.Close()

	out := New(Config{Timeout: 2 * time.Second}).Probe(context.Background(), target)

	if out.Status != StatusConnectError {
		t.Fatalf("Status = %s, want %s (message %q)", out.Status, StatusConnectError, out.Message)
	}
	if out.Message != MessageConnectError {
		t.Errorf("Message = %q, want %q", out.Message, MessageConnectError)
	}
}

func TestProbe_OtherErrorKeepsMessage(t *testing.T) {
	transport := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("stream reset by peer tag")
	})

	out := New(Config{Timeout: time.Second}, WithTransport(transport)).Probe(context.Background(), "http://example.test")

	if out.Status != StatusOtherError {
		t.Fatalf("Status = %s, want %s", out.Status, StatusOtherError)
	}
	if !strings.Contains(out.Message, "stream reset by peer tag") {
		t.Errorf("Message = %q, want underlying error text", out.Message)
	}
	if out.Code() != CodeError {
		t.Errorf("Code() = %q, want %q", out.Code(), CodeError)
	}
}

func TestProbe_MalformedURL(t *testing.T) {
	out := New(DefaultConfig()).Probe(context.Background(), "http://[::1")

	if out.Status != StatusOtherError {
		t.Errorf("Status = %s, want %s", out.Status, StatusOtherError)
	}
}

func TestProbe_IgnoresCertificates(t *testing.T) {
	site := testutil.NewTLSMockSite()
	defer site.Close()

	out := New(Config{Timeout: 5 * time.Second}).Probe(context.Background(), site.URL()+"/")

	if out.Status != StatusOK || out.StatusCode != http.StatusOK {
		t.Errorf("Probe() = %+v, want 200 OK despite self-signed certificate", out)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: StatusTimeout},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, want: StatusConnectError},
		{name: "refused", err: testutil.ConnectionRefused(), want: StatusConnectError},
		{name: "canceled", err: context.Canceled, want: StatusOtherError},
		{name: "plain", err: errors.New("boom"), want: StatusOtherError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err).Status; got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_CanceledMessage(t *testing.T) {
	wrapped := &url.Error{Op: "Get", URL: "http://example.com", Err: context.Canceled}

	out := Classify(wrapped)
	if out.Status != StatusOtherError || out.Message != MessageCanceled {
		t.Errorf("Classify(%v) = %+v, want other_error/%q", wrapped, out, MessageCanceled)
	}
}

func TestProbe_CanceledContext(t *testing.T) {
	site := testutil.NewMockSite()
	defer site.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(DefaultConfig()).Probe(ctx, site.URL())
	if out.Message != MessageCanceled {
		t.Errorf("Probe() = %+v, want message %q", out, MessageCanceled)
	}
}

func TestOutcomeCode(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{outcome: Success(200), want: "200"},
		{outcome: Success(404), want: "404"},
		{outcome: Outcome{Status: StatusTimeout}, want: CodeTimeout},
		{outcome: Outcome{Status: StatusConnectError}, want: CodeConnectError},
		{outcome: Outcome{Status: StatusOtherError}, want: CodeError},
	}

	for _, tt := range tests {
		if got := tt.outcome.Code(); got != tt.want {
			t.Errorf("Code() = %q, want %q", got, tt.want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
