// Package cors decides, per request, which cross-origin response headers a
// browser-originated request may receive. Decisions are computed from a
// static allow-list loaded once at startup; the policy itself is read-only
// at request time.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

const maxAgeSeconds = 86400

var allowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
}

var allowedHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}

// Decision is the per-request outcome. AllowedOrigin is empty when the
// request either carried no Origin header (non-browser caller, exempt) or
// an origin outside the allow-list; downstream renders empty as an absent
// header, never as a wildcard. Credentialed responses must echo an exact
// origin, so the wildcard case cannot be produced here at all.
type Decision struct {
	AllowedOrigin    string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

// Policy holds the origin allow-list, matched by exact string comparison.
type Policy struct {
	origins map[string]struct{}
}

func NewPolicy(origins []string) *Policy {
	set := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return &Policy{origins: set}
}

// Allowed reports whether origin is on the allow-list.
func (p *Policy) Allowed(origin string) bool {
	_, ok := p.origins[strings.TrimRight(origin, "/")]
	return ok
}

// Decide computes the decision for a request's declared origin. Pure: no
// side effects beyond the returned value.
func (p *Policy) Decide(origin string) Decision {
	decision := Decision{
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		AllowCredentials: true,
		MaxAgeSeconds:    maxAgeSeconds,
	}
	if origin == "" {
		// Same-origin or non-browser caller; exempt.
		return decision
	}
	if p.Allowed(origin) {
		decision.AllowedOrigin = strings.TrimRight(origin, "/")
	}
	return decision
}

// Apply merges the decision onto a response. An empty AllowedOrigin writes
// no allow headers at all; the browser then blocks the response, which is
// the intended rejection path for unknown origins. Vary is always written
// so shared caches never serve one origin's variant to another.
func Apply(header http.Header, decision Decision) {
	header.Add("Vary", "Origin")
	if decision.AllowedOrigin == "" {
		return
	}
	header.Set("Access-Control-Allow-Origin", decision.AllowedOrigin)
	header.Set("Access-Control-Allow-Methods", strings.Join(decision.AllowedMethods, ", "))
	header.Set("Access-Control-Allow-Headers", strings.Join(decision.AllowedHeaders, ", "))
	if decision.AllowCredentials {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
	header.Set("Access-Control-Max-Age", strconv.Itoa(decision.MaxAgeSeconds))
}

