package cors

import (
	"net/http"
	"testing"
)

func newTestPolicy() *Policy {
	return NewPolicy([]string{"https://admin.example.com", "https://example.com"})
}

func TestDecideAllowListedOrigin(t *testing.T) {
	decision := newTestPolicy().Decide("https://admin.example.com")
	if decision.AllowedOrigin != "https://admin.example.com" {
		t.Fatalf("expected echoed origin, got %q", decision.AllowedOrigin)
	}
	if !decision.AllowCredentials {
		t.Fatal("expected AllowCredentials")
	}
	if decision.MaxAgeSeconds != 86400 {
		t.Fatalf("expected MaxAgeSeconds=86400, got %d", decision.MaxAgeSeconds)
	}
}

func TestDecideUnknownOriginNeverWildcards(t *testing.T) {
	decision := newTestPolicy().Decide("https://evil.example.net")
	if decision.AllowedOrigin != "" {
		t.Fatalf("expected empty AllowedOrigin, got %q", decision.AllowedOrigin)
	}

	header := http.Header{}
	Apply(header, decision)
	if got := header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected absent Access-Control-Allow-Origin, got %q", got)
	}
	if got := header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("expected no credentials header without an origin, got %q", got)
	}
}

func TestDecideAbsentOriginIsExempt(t *testing.T) {
	decision := newTestPolicy().Decide("")
	header := http.Header{}
	Apply(header, decision)
	if len(header) != 0 {
		t.Fatalf("expected no CORS headers for originless request, got %v", header)
	}
}

func TestDecideIncludesRequiredMethods(t *testing.T) {
	decision := newTestPolicy().Decide("https://example.com")
	required := map[string]bool{
		http.MethodGet: false, http.MethodPost: false, http.MethodPut: false,
		http.MethodPatch: false, http.MethodDelete: false, http.MethodOptions: false,
	}
	for _, m := range decision.AllowedMethods {
		if _, ok := required[m]; ok {
			required[m] = true
		}
	}
	for m, seen := range required {
		if !seen {
			t.Errorf("method %s missing from decision", m)
		}
	}
}

func TestApplyWritesCredentialedHeaders(t *testing.T) {
	decision := newTestPolicy().Decide("https://admin.example.com")
	header := http.Header{}
	Apply(header, decision)

	if got := header.Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("origin header = %q", got)
	}
	if got := header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("credentials header = %q", got)
	}
	if got := header.Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("max-age header = %q", got)
	}
	if got := header.Get("Vary"); got != "Origin" {
		t.Errorf("vary header = %q", got)
	}
}

func TestPolicyNormalizesTrailingSlash(t *testing.T) {
	policy := NewPolicy([]string{"https://admin.example.com/"})
	if !policy.Allowed("https://admin.example.com") {
		t.Fatal("expected trailing slash in config to be normalized")
	}
}

func TestApplyAlwaysVariesOnOrigin(t *testing.T) {
	policy := newTestPolicy()

	// Allow-listed, unknown, and absent origins all produce cacheable
	// variants that differ, so every response must declare Vary: Origin.
	for _, origin := range []string{"https://example.com", "https://evil.example.net", ""} {
		header := http.Header{}
		Apply(header, policy.Decide(origin))
		if got := header.Get("Vary"); got != "Origin" {
			t.Fatalf("origin %q: expected Vary: Origin, got %q", origin, got)
		}
	}
}
