package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/proxy-bench/internal/config"
	"github.com/proxy-bench/internal/proxy"
)

func newExecutor(timeout time.Duration, insecure bool) *Executor {
	cfg := config.Default().Bench
	cfg.TimeoutMs = int(timeout / time.Millisecond)
	cfg.InsecureSkipVerify = insecure
	return New(cfg)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestExecuteStatusKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "hello")
		case "/redirect":
			http.Redirect(w, r, "/ok", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	e := newExecutor(time.Second, false)
	defer e.Close()

	tests := map[string]string{
		"/ok":       "200",
		"/missing":  "404",
		"/redirect": "302",
	}
	for path, want := range tests {
		out := e.Execute(context.Background(), mustParse(t, server.URL+path), proxy.Direct())
		if out.Key != want || out.Failed() {
			t.Errorf("%s: outcome = %+v, want key %s", path, out, want)
		}
		if out.Elapsed <= 0 {
			t.Errorf("%s: elapsed = %v", path, out.Elapsed)
		}
	}
}

func TestExecuteIncludesBodyTransfer(t *testing.T) {
	const delay = 150 * time.Millisecond
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "first chunk")
		w.(http.Flusher).Flush()
		time.Sleep(delay)
		fmt.Fprint(w, "second chunk")
	}))
	defer server.Close()

	e := newExecutor(2*time.Second, false)
	out := e.Execute(context.Background(), mustParse(t, server.URL), proxy.Direct())
	if out.Key != "200" {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Elapsed < delay {
		t.Errorf("elapsed %v does not include the body transfer (>= %v)", out.Elapsed, delay)
	}
}

func TestExecuteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	e := newExecutor(50*time.Millisecond, false)
	out := e.Execute(context.Background(), mustParse(t, server.URL), proxy.Direct())
	if out.Key != FailedKey || out.Reason != ReasonTimeout {
		t.Fatalf("outcome = %+v, want Failed/timeout", out)
	}
	if out.Elapsed < 50*time.Millisecond || out.Elapsed > time.Second {
		t.Errorf("elapsed = %v, want about the timeout", out.Elapsed)
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	e := newExecutor(time.Second, false)
	out := e.Execute(context.Background(), mustParse(t, "http://"+addr+"/"), proxy.Direct())
	if out.Key != FailedKey || out.Reason != ReasonConnectionRefused {
		t.Errorf("outcome = %+v, want Failed/connection_refused", out)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newExecutor(time.Second, false)
	out := e.Execute(ctx, mustParse(t, server.URL), proxy.Direct())
	if out.Key != FailedKey || out.Reason != ReasonCanceled {
		t.Errorf("outcome = %+v, want Failed/canceled", out)
	}
}

func TestExecuteTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secure")
	}))
	defer server.Close()
	target := mustParse(t, server.URL)

	strict := newExecutor(time.Second, false)
	if out := strict.Execute(context.Background(), target, proxy.Direct()); out.Key != FailedKey || out.Reason != ReasonTLS {
		t.Errorf("verifying executor: outcome = %+v, want Failed/tls", out)
	}

	insecure := newExecutor(time.Second, true)
	if out := insecure.Execute(context.Background(), target, proxy.Direct()); out.Key != "200" {
		t.Errorf("insecure executor: outcome = %+v, want 200", out)
	}
}

func TestExecuteThroughHTTPProxy(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	forward := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Proxy-Authorization") == "" {
			w.WriteHeader(http.StatusProxyAuthRequired)
			return
		}
		mu.Lock()
		seen = append(seen, r.URL.String())
		mu.Unlock()
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
	}))
	defer forward.Close()

	p, err := proxy.Parse("http://bench:secret@" + forward.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	e := newExecutor(time.Second, false)
	out := e.Execute(context.Background(), mustParse(t, "http://target.invalid/path"), p)
	if out.Key != "203" {
		t.Fatalf("outcome = %+v, want 203 from the proxy", out)
	}
	mu.Lock()
	if len(seen) != 1 || seen[0] != "http://target.invalid/path" {
		t.Errorf("proxy saw %v", seen)
	}
	mu.Unlock()

	anon, _ := proxy.Parse(forward.Listener.Addr().String())
	if out := e.Execute(context.Background(), mustParse(t, "http://target.invalid/"), anon); out.Key != "407" {
		t.Errorf("anonymous proxy outcome = %+v, want 407", out)
	}
}

func TestExecuteSOCKSProxyUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p, err := proxy.Parse("socks5://" + addr)
	if err != nil {
		t.Fatal(err)
	}

	e := newExecutor(time.Second, false)
	out := e.Execute(context.Background(), mustParse(t, "http://example.invalid/"), p)
	if out.Key != FailedKey || out.Err == nil {
		t.Errorf("outcome = %+v, want Failed", out)
	}
}

func TestClientIsReusedPerProxy(t *testing.T) {
	e := newExecutor(time.Second, false)
	a, err := e.clientFor(proxy.Direct())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.clientFor(proxy.Direct())
	if a != b {
		t.Error("expected one client per proxy")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.Canceled, ReasonCanceled},
		{fmt.Errorf("request: %w", context.DeadlineExceeded), ReasonTimeout},
		{&net.DNSError{Err: "no such host", Name: "x.invalid"}, ReasonDNS},
		{errors.New("proxyconnect tcp: broken"), ReasonProxy},
		{errors.New("socks connect: general failure"), ReasonProxy},
		{fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), ReasonEOF},
		{errors.New("something odd"), ReasonOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
