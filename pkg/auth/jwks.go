package auth

import (
	"crypto/rsa"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/richard-senior/mcp/internal/logger"
)

// jwksPath is appended to an issuer URL to locate its key set.
const jwksPath = ".well-known/jwks.json"

type cachedKeySet struct {
	keys      map[string]*rsa.PublicKey
	etag      string
	fetchedAt time.Time
}

// JWKSCache fetches and caches JSON Web Key Sets by issuer, using
// singleflight to collapse concurrent fetches for the same issuer and an
// optional on-disk cache (modernc.org/sqlite) so a process restart doesn't
// require re-fetching every issuer's keys immediately.
type JWKSCache struct {
	httpClient *http.Client
	group      singleflight.Group

	mu         sync.RWMutex
	cache      map[string]*cachedKeySet

	diskDB     *sql.DB
}

// NewJWKSCache builds a cache with the given HTTP client (nil uses
// http.DefaultClient). dbPath, if non-empty, enables the on-disk cache.
func NewJWKSCache(httpClient *http.Client, dbPath string) (*JWKSCache, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &JWKSCache{
		httpClient: httpClient,
		cache: make(map[string]*cachedKeySet),
	}
	if dbPath != "" {
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("auth: open jwks cache db: %w", err)
		}
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jwks_cache (
			issuer_hash TEXT PRIMARY KEY,
			issuer TEXT NOT NULL,
			body BLOB NOT NULL,
			etag TEXT,
			fetched_at INTEGER NOT NULL
		)`); err != nil {
			db.Close()
			return nil, fmt.Errorf("auth: create jwks cache table: %w", err)
		}
		c.diskDB = db
	}
	return c, nil
}

func issuerHash(issuer string) string {
	sum := sha256.Sum256([]byte(issuer))
	return hex.EncodeToString(sum[:])
}

// Keys returns the keyID -> RSA public key map for issuer, fetching and
// parsing the JWKS document on a cache miss.
func (c *JWKSCache) Keys(issuer string) (map[string]*rsa.PublicKey, error) {
	c.mu.RLock()
	entry, ok := c.cache[issuer]
	c.mu.RUnlock()
	if ok {
		return entry.keys, nil
	}

	result, err, _ := c.group.Do(issuer, func() (any, error) {
		return c.fetchAndParse(issuer)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]*rsa.PublicKey), nil
}

func (c *JWKSCache) fetchAndParse(issuer string) (map[string]*rsa.PublicKey, error) {
	body, etag, err := c.fetchBody(issuer)
	if err != nil {
		return nil, err
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("auth: parse jwks for %s: %w", issuer, err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		pub, ok := extractRSAPublicKey(k)
		if !ok {
			continue
		}
		keys[k.KeyID] = pub
	}

	c.mu.Lock()
	c.cache[issuer] = &cachedKeySet{keys: keys, etag: etag, fetchedAt: time.Now()}
	c.mu.Unlock()

	c.persistDisk(issuer, body, etag)
	return keys, nil
}

// extractRSAPublicKey prefers the JWK's n/e-derived key (what go-jose
// decodes JSONWebKey.Key into) and falls back to the first X.509
// certificate in x5c.
func extractRSAPublicKey(k jose.JSONWebKey) (*rsa.PublicKey, bool) {
	if pub, ok := k.Key.(*rsa.PublicKey); ok {
		return pub, true
	}
	if len(k.Certificates) > 0 {
		if pub, ok := k.Certificates[0].PublicKey.(*rsa.PublicKey); ok {
			return pub, true
		}
	}
	return nil, false
}

func (c *JWKSCache) fetchBody(issuer string) ([]byte, string, error) {
	url := strings.TrimSuffix(issuer, "/") + "/" + jwksPath

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	if cached, ok := c.diskLoad(issuer); ok && cached.etag != "" {
		req.Header.Set("If-None-Match", cached.etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("auth: fetch jwks from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if cached, ok := c.diskLoad(issuer); ok {
			return cached.body, cached.etag, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("auth: jwks endpoint %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("ETag"), nil
}

type diskEntry struct {
	body []byte
	etag string
}

func (c *JWKSCache) diskLoad(issuer string) (diskEntry, bool) {
	if c.diskDB == nil {
		return diskEntry{}, false
	}
	var e diskEntry
	row := c.diskDB.QueryRow(`SELECT body, etag FROM jwks_cache WHERE issuer_hash = ?`, issuerHash(issuer))
	if err := row.Scan(&e.body, &e.etag); err != nil {
		return diskEntry{}, false
	}
	return e, true
}

func (c *JWKSCache) persistDisk(issuer string, body []byte, etag string) {
	if c.diskDB == nil {
		return
	}
	_, err := c.diskDB.Exec(`INSERT INTO jwks_cache (issuer_hash, issuer, body, etag, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(issuer_hash) DO UPDATE SET body=excluded.body, etag=excluded.etag, fetched_at=excluded.fetched_at`,
		issuerHash(issuer), issuer, body, etag, time.Now().Unix())
	if err != nil {
		logger.Warn("auth: failed to persist jwks disk cache entry", err)
	}
}

// Close releases the on-disk cache handle, if any.
func (c *JWKSCache) Close() error {
	if c.diskDB != nil {
		return c.diskDB.Close()
	}
	return nil
}
