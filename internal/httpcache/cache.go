package httpcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	key      string
	status   int
	header   http.Header
	body     []byte
	etag     string
	storedAt time.Time
}

// Cache is an LRU of HTTP responses keyed by request fingerprint.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
}

func New(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]*list.Element{},
		lru:        list.New(),
	}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) get(key string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(entry), true
}

func (c *Cache) put(key string, status int, header http.Header, body []byte, now time.Time) entry {
	ent := entry{
		key:      key,
		status:   status,
		header:   cloneHeader(header),
		body:     append([]byte(nil), body...),
		etag:     strings.TrimSpace(header.Get("ETag")),
		storedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = ent
		c.lru.MoveToFront(el)
		return ent
	}
	c.entries[key] = c.lru.PushFront(ent)
	for c.lru.Len() > c.maxEntries {
		oldest := c.lru.Back()
		delete(c.entries, oldest.Value.(entry).key)
		c.lru.Remove(oldest)
	}
	return ent
}

// touch marks a revalidated entry as fresh.
func (c *Cache) touch(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		ent := el.Value.(entry)
		ent.storedAt = now
		el.Value = ent
		c.lru.MoveToFront(el)
	}
}

func (c *Cache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.lru.Remove(el)
	}
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

// fingerprint hashes the values of keys in h so credentials never end up in cache keys verbatim.
func fingerprint(h http.Header, keys []string) string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = http.CanonicalHeaderKey(strings.TrimSpace(k)); k != "" && h.Get(k) != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	sum := sha256.New()
	for _, k := range names {
		sum.Write([]byte(k))
		sum.Write([]byte{0})
		sum.Write([]byte(strings.TrimSpace(h.Get(k))))
		sum.Write([]byte{0})
	}
	return hex.EncodeToString(sum.Sum(nil))
}
