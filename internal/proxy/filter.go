package proxy

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prefilter drops proxies that do not accept a TCP connection within
// timeout. Order of the surviving proxies is preserved.
func Prefilter(ctx context.Context, proxies []Descriptor, timeout time.Duration, concurrency int) []Descriptor {
	if len(proxies) == 0 {
		return proxies
	}
	if concurrency < 1 {
		concurrency = 1
	}

	log.Infof("Starting connect filter: %d proxies, concurrency=%d, timeout=%v",
		len(proxies), concurrency, timeout)
	startTime := time.Now()

	reachable := make([]bool, len(proxies))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, p := range proxies {
		if p.IsDirect() {
			reachable[i] = true
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return keep(proxies, reachable)
		}
		wg.Add(1)

		go func(i int, addr string) {
			defer wg.Done()
			defer func() { <-sem }()

			reachable[i] = testTCPConnection(ctx, addr, timeout)
		}(i, p.Address())
	}

	wg.Wait()

	kept := keep(proxies, reachable)
	log.Infof("Connect filter complete: %d/%d reachable in %v",
		len(kept), len(proxies), time.Since(startTime))

	return kept
}

func keep(proxies []Descriptor, reachable []bool) []Descriptor {
	kept := make([]Descriptor, 0, len(proxies))
	for i, p := range proxies {
		if reachable[i] {
			kept = append(kept, p)
		}
	}
	return kept
}

func testTCPConnection(ctx context.Context, address string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		log.Debugf("Proxy %s unreachable: %v", address, err)
		return false
	}
	conn.Close()
	return true
}
