package types

import "time"

// ProxyEntry is one proxy as stored by a proxy checker snapshot.
type ProxyEntry struct {
	Address  string `json:"address"`            // host:port
	Protocol string `json:"protocol,omitempty"` // "http", "https", "socks5"
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Alive    *bool  `json:"alive,omitempty"` // nil when the source does not track liveness
}

// IsAlive reports whether the entry may be used. Entries without a liveness
// flag count as alive.
func (e ProxyEntry) IsAlive() bool {
	return e.Alive == nil || *e.Alive
}

// ProxyList is the stored form of a proxy snapshot.
type ProxyList struct {
	Proxies []ProxyEntry `json:"proxies"`
	Updated time.Time    `json:"updated"`
}

// AliveEntries returns the entries not marked dead.
func (l *ProxyList) AliveEntries() []ProxyEntry {
	alive := make([]ProxyEntry, 0, len(l.Proxies))
	for _, p := range l.Proxies {
		if p.IsAlive() {
			alive = append(alive, p)
		}
	}
	return alive
}
