package executor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/proxy-bench/internal/proxy"
	xproxy "golang.org/x/net/proxy"
)

func (e *Executor) newTransport(p proxy.Descriptor) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   e.timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   e.timeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     !e.keepAlive,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: e.insecure,
		},
	}

	switch {
	case p.IsDirect():
	case p.Scheme == "socks5":
		var auth *xproxy.Auth
		if p.User != "" {
			auth = &xproxy.Auth{
				User:     p.User,
				Password: p.Password,
			}
		}

		socks, err := xproxy.SOCKS5("tcp", p.Address(), auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dialer for %s: %w", p, err)
		}
		if cd, ok := socks.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return socks.Dial(network, addr)
			}
		}
	default:
		transport.Proxy = http.ProxyURL(p.URL())
	}

	return transport, nil
}
