package rpcpool

import "strings"

// Endpoint is one (URL, credential) pair identifying an RPC provider.
type Endpoint struct {
	URL    string
	APIKey string
}

// RequestURL returns the dialable URL. Providers that authenticate through
// the path (Alchemy/Infura style) get the key appended as the last segment.
func (e Endpoint) RequestURL() string {
	if e.APIKey == "" {
		return e.URL
	}
	return strings.TrimRight(e.URL, "/") + "/" + e.APIKey
}

// ParseList splits a comma-separated config value into trimmed entries,
// dropping empties.
func ParseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// EndpointsFromLists pairs a list of URLs with a parallel list of keys.
// Pairing is positional with wraparound when the list lengths differ:
// N urls and M keys yield max(N,M) endpoints, each url/key chosen by index
// modulo its own list length. An empty key list yields credential-less
// endpoints.
func EndpointsFromLists(urls, keys []string) []Endpoint {
	if len(urls) == 0 {
		return nil
	}
	count := len(urls)
	if len(keys) > count {
		count = len(keys)
	}
	endpoints := make([]Endpoint, count)
	for i := 0; i < count; i++ {
		endpoints[i].URL = urls[i%len(urls)]
		if len(keys) > 0 {
			endpoints[i].APIKey = keys[i%len(keys)]
		}
	}
	return endpoints
}
