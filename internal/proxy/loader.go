package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/proxy-bench/internal/config"
	"github.com/proxy-bench/internal/storage"
	log "github.com/sirupsen/logrus"
)

// maxListBytes caps remote proxy lists.
const maxListBytes = 10 * 1024 * 1024

var listClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Load builds the proxy list described by cfg. With no path configured the
// result is the direct sentinel alone.
func Load(ctx context.Context, cfg config.ProxyConfig) ([]Descriptor, error) {
	if cfg.Path == "" {
		return []Descriptor{Direct()}, nil
	}

	var (
		proxies []Descriptor
		err     error
	)
	switch cfg.Store {
	case "list", "":
		proxies, err = loadList(ctx, cfg.Path)
	default:
		proxies, err = loadStore(ctx, cfg.Store, cfg.Path)
	}
	if err != nil {
		return nil, err
	}
	if len(proxies) == 0 {
		return nil, fmt.Errorf("no proxies found in %s", cfg.Path)
	}
	log.Infof("Loaded %d proxies from %s (%s)", len(proxies), cfg.Path, cfg.Store)

	if cfg.Prefilter {
		timeout := time.Duration(cfg.PrefilterTimeoutMs) * time.Millisecond
		proxies = Prefilter(ctx, proxies, timeout, cfg.PrefilterConcurrency)
		if len(proxies) == 0 {
			return nil, fmt.Errorf("no proxies from %s passed the connect filter", cfg.Path)
		}
	}

	return proxies, nil
}

func loadList(ctx context.Context, path string) ([]Descriptor, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return fetchList(ctx, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer file.Close()

	return ParseList(file)
}

func fetchList(ctx context.Context, rawURL string) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := listClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch proxy list: HTTP %d", resp.StatusCode)
	}

	return ParseList(io.LimitReader(resp.Body, maxListBytes))
}

// ParseList reads one proxy per line. Blank lines and lines starting with
// '#' are skipped; unparsable lines are logged and skipped.
func ParseList(r io.Reader) ([]Descriptor, error) {
	proxies := make([]Descriptor, 0)
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		d, err := Parse(line)
		if err != nil {
			log.Warnf("Skipping proxy on line %d: %v", lineNum, err)
			continue
		}
		proxies = append(proxies, d)
	}

	if err := scanner.Err(); err != nil {
		return proxies, fmt.Errorf("scan: %w", err)
	}

	return proxies, nil
}

func loadStore(ctx context.Context, storeType, path string) ([]Descriptor, error) {
	store, err := storage.Open(ctx, storeType, path)
	if err != nil {
		return nil, fmt.Errorf("open proxy store: %w", err)
	}
	defer store.Close()

	list, err := store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read proxy store: %w", err)
	}

	entries := list.AliveEntries()
	proxies := make([]Descriptor, 0, len(entries))
	for _, e := range entries {
		line := e.Address
		if e.Protocol != "" && !strings.Contains(line, "://") {
			line = e.Protocol + "://" + line
		}
		d, err := Parse(line)
		if err != nil {
			log.Warnf("Skipping stored proxy %s: %v", e.Address, err)
			continue
		}
		if e.User != "" {
			d.User, d.Password = e.User, e.Password
		}
		proxies = append(proxies, d)
	}

	return proxies, nil
}
