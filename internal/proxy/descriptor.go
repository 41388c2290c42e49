package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// Descriptor identifies one forwarding proxy. The zero value is the direct
// sentinel: connect to the target without a proxy.
type Descriptor struct {
	Scheme   string
	Host     string
	Port     string
	User     string
	Password string
}

// Direct returns the direct sentinel.
func Direct() Descriptor {
	return Descriptor{}
}

func (d Descriptor) IsDirect() bool {
	return d == Descriptor{}
}

// Address returns host:port.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Host, d.Port)
}

// URL returns the proxy as a URL including credentials, or nil for direct.
func (d Descriptor) URL() *url.URL {
	if d.IsDirect() {
		return nil
	}
	u := &url.URL{Scheme: d.Scheme, Host: d.Address()}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u
}

// String is safe to log: it never includes the password.
func (d Descriptor) String() string {
	if d.IsDirect() {
		return "direct"
	}
	if d.User != "" {
		return fmt.Sprintf("%s://%s@%s", d.Scheme, d.User, d.Address())
	}
	return fmt.Sprintf("%s://%s", d.Scheme, d.Address())
}

// Parse turns one proxy line into a Descriptor. Lines without a scheme are
// treated as http proxies.
func Parse(line string) (Descriptor, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Descriptor{}, fmt.Errorf("empty proxy line")
	}
	if !strings.Contains(line, "://") {
		line = "http://" + line
	}

	u, err := url.Parse(line)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse proxy URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	defaultPort, ok := defaultPorts[scheme]
	if !ok {
		return Descriptor{}, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	if u.Hostname() == "" {
		return Descriptor{}, fmt.Errorf("proxy %q has no host", line)
	}

	d := Descriptor{
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   u.Port(),
	}
	if d.Port == "" {
		d.Port = defaultPort
	}
	if u.User != nil {
		d.User = u.User.Username()
		d.Password, _ = u.User.Password()
	}

	return d, nil
}
