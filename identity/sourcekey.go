// Package identity canonicalizes the keys listings are merged and
// deduplicated on, so the same room seen through different query
// strings or tracking links resolves to one record.
package identity

import (
	"net/url"
	"sort"
	"strings"
)

// Query parameters that never identify a listing.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"ref":          true,
}

// CanonicalURL normalizes a listing URL for use as a merge/dedup key:
// lowercased scheme and host, default ports and fragments dropped,
// tracking parameters stripped, remaining query sorted, trailing slash
// trimmed. Unparseable input is returned trimmed but otherwise as-is so
// an odd URL still dedupes against itself.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	if len(q) == 0 {
		u.RawQuery = ""
	} else {
		// url.Values.Encode sorts keys; rebuild for deterministic order.
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			for _, v := range q[k] {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// ExternalKey builds the source-scoped external identifier used for
// merge lookups ("weeklymansion:wm-123").
func ExternalKey(source, externalID string) string {
	return source + ":" + externalID
}
