package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/proxy-bench/internal/config"
	"github.com/proxy-bench/internal/proxy"
	log "github.com/sirupsen/logrus"
)

// FailedKey is the outcome key of every attempt that did not produce a
// fully read response.
const FailedKey = "Failed"

// Outcome is the result of one timed attempt. Err and Reason are set only
// when Key is FailedKey.
type Outcome struct {
	Key     string
	Status  int
	Elapsed time.Duration
	Err     error
	Reason  string
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Executor issues timed GET requests. One transport is kept per proxy and
// shared by all workers.
type Executor struct {
	timeout   time.Duration
	insecure  bool
	keepAlive bool
	trace     bool

	mu      sync.RWMutex
	clients map[proxy.Descriptor]*http.Client
}

func New(cfg config.BenchConfig) *Executor {
	return &Executor{
		timeout:   cfg.Timeout(),
		insecure:  cfg.InsecureSkipVerify,
		keepAlive: cfg.KeepAlive,
		trace:     cfg.Trace,
		clients:   make(map[proxy.Descriptor]*http.Client),
	}
}

// Execute performs one GET against target through p. The attempt is bounded
// by the configured timeout and by ctx. It never returns an error: any
// failure becomes a FailedKey outcome.
func (e *Executor) Execute(ctx context.Context, target *url.URL, p proxy.Descriptor) Outcome {
	startTime := time.Now()
	out := e.execute(ctx, startTime, target, p)

	if e.trace {
		fields := log.Fields{
			"proxy":      p.String(),
			"key":        out.Key,
			"status":     out.Status,
			"elapsed_ms": float64(out.Elapsed.Microseconds()) / 1000.0,
		}
		if out.Failed() {
			fields["reason"] = out.Reason
			fields["error"] = out.Err.Error()
		}
		log.WithFields(fields).Debug("Request")
	}

	return out
}

func (e *Executor) execute(ctx context.Context, startTime time.Time, target *url.URL, p proxy.Descriptor) Outcome {
	client, err := e.clientFor(p)
	if err != nil {
		return failed(startTime, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return failed(startTime, fmt.Errorf("create request: %w", err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return failed(startTime, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	// Response time includes the full body transfer.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return failed(startTime, fmt.Errorf("read body: %w", err))
	}

	return Outcome{
		Key:     strconv.Itoa(resp.StatusCode),
		Status:  resp.StatusCode,
		Elapsed: time.Since(startTime),
	}
}

func failed(startTime time.Time, err error) Outcome {
	return Outcome{
		Key:     FailedKey,
		Elapsed: time.Since(startTime),
		Err:     err,
		Reason:  Classify(err),
	}
}

func (e *Executor) clientFor(p proxy.Descriptor) (*http.Client, error) {
	e.mu.RLock()
	client, exists := e.clients[p]
	e.mu.RUnlock()

	if exists {
		return client, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := e.clients[p]; exists {
		return client, nil
	}

	transport, err := e.newTransport(p)
	if err != nil {
		return nil, err
	}
	client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Don't follow redirects
		},
	}
	e.clients[p] = client

	return client, nil
}

// Close releases idle connections held by every transport.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, client := range e.clients {
		client.CloseIdleConnections()
	}
}
