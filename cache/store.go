// Package cache persists expensive upstream results (search result
// sets, product detail pages) in a sqlite-backed key-value store with
// TTL expiry and size-bounded eviction.
package cache

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/torobtools/offercatalog/models"
)

// Namespaces for the payload kinds the catalog caches.
const (
	NamespaceSearch  = "search"
	NamespaceProduct = "product"
)

// evictionTarget is the fraction of the size ceiling the store shrinks
// to once the ceiling is exceeded.
const evictionTarget = 0.8

// cached_at is Unix nanoseconds so expiry cutoffs and eviction order
// compare numerically regardless of zone or fractional-second
// formatting.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	namespace  TEXT NOT NULL,
	query      TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	payload    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_cached_at ON entries (cached_at);
`

// Options configures a Store.
type Options struct {
	Enabled bool
	TTL     time.Duration
	// MaxSizeBytes bounds the aggregate payload size; 0 disables
	// eviction.
	MaxSizeBytes int64
	// MemoryEntries sizes the in-process read-through layer.
	MemoryEntries int
}

type memoryEntry struct {
	cachedAt time.Time
	payload  []byte
}

// Stats is a snapshot of store counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Expired   int64
	SizeBytes int64
}

// Store owns persisted entries exclusively; callers always receive and
// submit copies (payloads cross the boundary as serialized bytes).
// Concurrent operations on different keys do not interfere; same-key
// races are last-writer-wins on Set, and a Get racing an expiry delete
// reports a miss.
type Store struct {
	db      *sql.DB
	enabled bool
	ttl     time.Duration
	maxSize int64
	memory  *lru.Cache[string, memoryEntry]

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64

	now func() time.Time
}

// Open creates or opens the store at path. A disabled store never
// touches the path: every Get misses and every Set is a no-op.
func Open(path string, opts Options) (*Store, error) {
	if !opts.Enabled {
		return &Store{enabled: false, now: time.Now}, nil
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %v", opts.TTL)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialise cache schema: %w", err)
	}

	memEntries := opts.MemoryEntries
	if memEntries <= 0 {
		memEntries = 256
	}
	memory, err := lru.New[string, memoryEntry](memEntries)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialise memory layer: %w", err)
	}

	return &Store{
		db:      db,
		enabled: true,
		ttl:     opts.TTL,
		maxSize: opts.MaxSizeBytes,
		memory:  memory,
		now:     time.Now,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Key derives the namespace-qualified storage key for a query. Queries
// are trimmed and lowercased first so equivalent queries collide.
func Key(query, namespace string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := md5.Sum([]byte(normalized))
	return namespace + "_" + hex.EncodeToString(sum[:])
}

// Get returns the payload cached for query, or ok=false on a miss. An
// expired or corrupted entry is deleted as a side effect of lookup and
// reported as a miss.
func (s *Store) Get(query, namespace string) ([]byte, bool) {
	if !s.enabled {
		return nil, false
	}
	key := Key(query, namespace)

	if entry, ok := s.memory.Get(key); ok {
		if s.fresh(entry.cachedAt) {
			s.hits.Add(1)
			return entry.payload, true
		}
		s.memory.Remove(key)
	}

	var cachedAt string
	var payload []byte
	err := s.db.QueryRow(`SELECT cached_at, payload FROM entries WHERE key = ?`, key).
		Scan(&cachedAt, &payload)
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}

	nanos, err := strconv.ParseInt(cachedAt, 10, 64)
	if err != nil {
		// Corrupted timestamp: drop the entry and carry on.
		s.deleteKey(key)
		s.misses.Add(1)
		return nil, false
	}
	ts := time.Unix(0, nanos)
	if !s.fresh(ts) {
		s.deleteKey(key)
		s.expired.Add(1)
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	s.memory.Add(key, memoryEntry{cachedAt: ts, payload: payload})
	return payload, true
}

// Set caches payload for query with a fresh timestamp, then enforces
// the size ceiling. A no-op on a disabled store.
func (s *Store) Set(query, namespace string, payload []byte) error {
	if !s.enabled {
		return nil
	}
	key := Key(query, namespace)
	now := s.now()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO entries (key, namespace, query, cached_at, payload) VALUES (?, ?, ?, ?, ?)`,
		key, namespace, query, now.UnixNano(), payload,
	)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", namespace, err)
	}
	s.memory.Add(key, memoryEntry{cachedAt: now, payload: payload})

	return s.enforceSize()
}

// Delete removes the entry for query.
func (s *Store) Delete(query, namespace string) {
	if !s.enabled {
		return
	}
	s.deleteKey(Key(query, namespace))
}

func (s *Store) deleteKey(key string) {
	s.memory.Remove(key)
	if _, err := s.db.Exec(`DELETE FROM entries WHERE key = ?`, key); err != nil {
		slog.Warn("cache delete failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Store) fresh(cachedAt time.Time) bool {
	return s.now().Before(cachedAt.Add(s.ttl))
}

// enforceSize evicts entries oldest-first until the aggregate payload
// size is at or below 80% of the ceiling.
func (s *Store) enforceSize() error {
	if s.maxSize <= 0 {
		return nil
	}

	size, err := s.totalSize()
	if err != nil {
		return err
	}
	if size <= s.maxSize {
		return nil
	}

	target := int64(float64(s.maxSize) * evictionTarget)
	rows, err := s.db.Query(`SELECT key, LENGTH(payload) FROM entries ORDER BY cached_at ASC`)
	if err != nil {
		return fmt.Errorf("cache eviction scan: %w", err)
	}

	type victim struct {
		key  string
		size int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.key, &v.size); err != nil {
			rows.Close()
			return fmt.Errorf("cache eviction scan: %w", err)
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("cache eviction scan: %w", err)
	}
	rows.Close()

	evicted := 0
	for _, v := range victims {
		if size <= target {
			break
		}
		s.deleteKey(v.key)
		size -= v.size
		evicted++
	}
	if evicted > 0 {
		slog.Debug("cache evicted oldest entries",
			slog.Int("evicted", evicted),
			slog.Int64("size_bytes", size),
		)
	}
	return nil
}

func (s *Store) totalSize() (int64, error) {
	var size int64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(payload)), 0) FROM entries`).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("cache size check: %w", err)
	}
	return size, nil
}

// Cleanup removes all expired entries and returns how many were
// deleted.
func (s *Store) Cleanup() (int, error) {
	if !s.enabled {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.Exec(`DELETE FROM entries WHERE cached_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.memory.Purge()
		s.expired.Add(n)
	}
	return int(n), nil
}

// Clear drops every entry in the given namespace, or all entries when
// namespace is empty.
func (s *Store) Clear(namespace string) error {
	if !s.enabled {
		return nil
	}
	var err error
	if namespace == "" {
		_, err = s.db.Exec(`DELETE FROM entries`)
	} else {
		_, err = s.db.Exec(`DELETE FROM entries WHERE namespace = ?`, namespace)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	s.memory.Purge()
	return nil
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	st := Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Expired: s.expired.Load(),
	}
	if s.enabled {
		if size, err := s.totalSize(); err == nil {
			st.SizeBytes = size
		}
	}
	return st
}

// GetSearchResults returns the cached offer set for a keyword query.
// An undecodable payload is treated as corruption: deleted, miss.
func (s *Store) GetSearchResults(keywords string) ([]models.Offer, bool) {
	payload, ok := s.Get(keywords, NamespaceSearch)
	if !ok {
		return nil, false
	}
	var offers []models.Offer
	if err := json.Unmarshal(payload, &offers); err != nil {
		s.Delete(keywords, NamespaceSearch)
		return nil, false
	}
	return offers, true
}

// SetSearchResults caches the offer set for a keyword query.
func (s *Store) SetSearchResults(keywords string, offers []models.Offer) error {
	payload, err := json.Marshal(offers)
	if err != nil {
		return fmt.Errorf("encode search results: %w", err)
	}
	return s.Set(keywords, NamespaceSearch, payload)
}

// GetProductDetails returns the cached drill-down record for a product
// URL.
func (s *Store) GetProductDetails(productURL string) (*models.ProductDetails, bool) {
	payload, ok := s.Get(productURL, NamespaceProduct)
	if !ok {
		return nil, false
	}
	var details models.ProductDetails
	if err := json.Unmarshal(payload, &details); err != nil {
		s.Delete(productURL, NamespaceProduct)
		return nil, false
	}
	return &details, true
}

// SetProductDetails caches the drill-down record for a product URL.
func (s *Store) SetProductDetails(productURL string, details *models.ProductDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode product details: %w", err)
	}
	return s.Set(productURL, NamespaceProduct, payload)
}
