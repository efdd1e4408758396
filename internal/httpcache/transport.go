// Package httpcache provides an in-memory caching http.RoundTripper for idempotent Azure DevOps reads.
//
// Only successful GET responses are stored. Entries are keyed by URL and a hash of the
// credential-bearing headers, so responses are never shared between identities. Stale entries with
// an ETag are revalidated with If-None-Match.
package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTTL        = 60 * time.Second
	defaultMaxEntries = 256
)

// Config controls the cache. The zero value disables it.
type Config struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

// ConfigFromEnv reads AZDO_LENS_HTTP_CACHE_ENABLED, AZDO_LENS_HTTP_CACHE_TTL_SECONDS and
// AZDO_LENS_HTTP_CACHE_MAX_ENTRIES.
func ConfigFromEnv() Config {
	v := strings.TrimSpace(os.Getenv("AZDO_LENS_HTTP_CACHE_ENABLED"))
	cfg := Config{
		Enabled:    v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes"),
		TTL:        defaultTTL,
		MaxEntries: defaultMaxEntries,
	}
	if v := strings.TrimSpace(os.Getenv("AZDO_LENS_HTTP_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("AZDO_LENS_HTTP_CACHE_MAX_ENTRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEntries = n
		}
	}
	return cfg
}

var keyHeaders = []string{"Authorization", "Accept"}

// Transport caches GET responses from base.
type Transport struct {
	base  http.RoundTripper
	cache *Cache
	now   func() time.Time
}

// NewTransport wraps base. When cfg is disabled base is returned unchanged.
func NewTransport(base http.RoundTripper, cfg Config) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !cfg.Enabled {
		return base
	}
	return &Transport{base: base, cache: New(cfg.TTL, cfg.MaxEntries), now: time.Now}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("httpcache: nil request")
	}
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}

	key := req.URL.String() + " " + fingerprint(req.Header, keyHeaders)
	ent, hit := t.cache.get(key)
	if hit && t.now().Sub(ent.storedAt) < t.cache.TTL() {
		return ent.response(req), nil
	}

	out := req
	if hit && ent.etag != "" {
		out = req.Clone(req.Context())
		out.Header.Set("If-None-Match", ent.etag)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if hit && resp.StatusCode == http.StatusNotModified {
		_ = resp.Body.Close()
		t.cache.touch(key, t.now())
		return ent.response(req), nil
	}
	if resp.StatusCode != http.StatusOK {
		t.cache.remove(key)
		return resp, nil
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	stored := t.cache.put(key, resp.StatusCode, resp.Header, body, t.now())
	return &http.Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        cloneHeader(stored.header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
	}, nil
}

func (e entry) response(req *http.Request) *http.Response {
	h := cloneHeader(e.header)
	h.Set("X-Azdo-Lens-Cache", "hit")
	return &http.Response{
		StatusCode:    e.status,
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
