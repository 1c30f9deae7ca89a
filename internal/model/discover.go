package model

import "encoding/json"

// URLSet is a set of URLs that remembers insertion order.
// The zero value is an empty set ready to use.
type URLSet struct {
	items []string
	seen  map[string]struct{}
}

// NewURLSet creates a set holding the given URLs in order.
func NewURLSet(urls ...string) *URLSet {
	s := &URLSet{}
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts u if it is not present yet. It reports whether u was added.
func (s *URLSet) Add(u string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.items = append(s.items, u)
	return true
}

// Contains reports whether u is in the set.
func (s *URLSet) Contains(u string) bool {
	_, ok := s.seen[u]
	return ok
}

// Len returns the number of URLs in the set.
func (s *URLSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the URLs in insertion order.
func (s *URLSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// MarshalJSON encodes the set as a JSON array. An empty set encodes as [].
func (s URLSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON decodes a JSON array, dropping duplicates.
func (s *URLSet) UnmarshalJSON(data []byte) error {
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return err
	}
	*s = URLSet{}
	for _, u := range urls {
		s.Add(u)
	}
	return nil
}

// DiscoverResult holds the URLs classified during sitemap discovery.
type DiscoverResult struct {
	CategoryURLs URLSet `json:"categoryUrls"`
	ProductURLs  URLSet `json:"productUrls"`
}

// NewDiscoverResult creates an empty result.
func NewDiscoverResult() *DiscoverResult {
	return &DiscoverResult{}
}
