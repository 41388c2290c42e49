package proxy

import "math/rand"

// Source is a fixed, non-empty set of proxies. It is read-only after
// construction and safe for concurrent use.
type Source struct {
	proxies []Descriptor
}

// NewSource copies proxies. An empty list yields a source holding only the
// direct sentinel.
func NewSource(proxies []Descriptor) *Source {
	if len(proxies) == 0 {
		return &Source{proxies: []Descriptor{Direct()}}
	}
	cp := make([]Descriptor, len(proxies))
	copy(cp, proxies)
	return &Source{proxies: cp}
}

// Pick returns a uniformly random proxy.
func (s *Source) Pick() Descriptor {
	if len(s.proxies) == 1 {
		return s.proxies[0]
	}
	return s.proxies[rand.Intn(len(s.proxies))]
}

func (s *Source) Len() int {
	return len(s.proxies)
}

// All returns a copy of every proxy in the source.
func (s *Source) All() []Descriptor {
	cp := make([]Descriptor, len(s.proxies))
	copy(cp, s.proxies)
	return cp
}
