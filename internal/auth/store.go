package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
)

// ErrInvalidCookie is returned by CookieStore.Read when a signed cookie fails verification.
var ErrInvalidCookie = errors.New("cookie signature invalid")

// SessionStore is a key/value location holding session artifacts.
type SessionStore interface {
	// Read returns the value stored under key and whether it exists.
	Read(ctx context.Context, key string) (string, bool, error)
	// Write stores value under key. A non-positive maxAge means no expiry.
	Write(ctx context.Context, key, value string, maxAge time.Duration) error
	Clear(ctx context.Context, key string) error
}

// Stores bundles the two session locations of one request.
type Stores struct {
	Cookies SessionStore
	Local   SessionStore
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Read(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Write(_ context.Context, key, value string, maxAge time.Duration) error {
	entry := memoryEntry{value: value}
	if maxAge > 0 {
		entry.expiresAt = s.now().Add(maxAge)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Has reports whether key is currently stored.
func (s *MemoryStore) Has(key string) bool {
	_, ok, _ := s.Read(context.Background(), key)
	return ok
}

// CookieOptions configures the cookies written by CookieStore.
type CookieOptions struct {
	Secure bool
	// Codec signs cookie values when set. Unsigned values are stored as is.
	Codec *securecookie.SecureCookie
}

// NewCookieCodec returns a signing codec for the given secret, or nil when the secret is empty.
func NewCookieCodec(secret string) *securecookie.SecureCookie {
	if secret == "" {
		return nil
	}
	codec := securecookie.New([]byte(secret), nil)
	// Cookie lifetime is enforced by the browser and the session record.
	codec.MaxAge(0)
	return codec
}

// CookieStore is a SessionStore bound to one gin request. Writes made during
// the request are visible to later reads of the same request.
type CookieStore struct {
	c       *gin.Context
	opts    CookieOptions
	pending map[string]*string
}

func NewCookieStore(c *gin.Context, opts CookieOptions) *CookieStore {
	return &CookieStore{c: c, opts: opts, pending: make(map[string]*string)}
}

func (s *CookieStore) Read(_ context.Context, key string) (string, bool, error) {
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}

	cookie, err := s.c.Request.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false, nil
	}

	if s.opts.Codec == nil {
		return cookie.Value, true, nil
	}

	var value string
	if err := s.opts.Codec.Decode(key, cookie.Value, &value); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	return value, true, nil
}

func (s *CookieStore) Write(_ context.Context, key, value string, maxAge time.Duration) error {
	stored := value
	if s.opts.Codec != nil {
		encoded, err := s.opts.Codec.Encode(key, value)
		if err != nil {
			return fmt.Errorf("failed to sign cookie %s: %w", key, err)
		}
		stored = encoded
	}

	cookie := &http.Cookie{
		Name:     key,
		Value:    stored,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(s.c.Writer, cookie)

	s.pending[key] = &value
	return nil
}

func (s *CookieStore) Clear(_ context.Context, key string) error {
	http.SetCookie(s.c.Writer, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.pending[key] = nil
	return nil
}

// LocalStore is the server-side twin of the cookie location, kept in the
// request's scs session. The request context must have been loaded by
// SessionManager.SessionLoadSave.
type LocalStore struct {
	sm *SessionManager
}

func NewLocalStore(sm *SessionManager) *LocalStore {
	return &LocalStore{sm: sm}
}

func expiryKey(key string) string {
	return key + ":expires"
}

func (s *LocalStore) Read(ctx context.Context, key string) (string, bool, error) {
	if !s.sm.Exists(ctx, key) {
		return "", false, nil
	}
	if expires, ok := s.sm.Get(ctx, expiryKey(key)).(time.Time); ok && time.Now().After(expires) {
		s.sm.Remove(ctx, key)
		s.sm.Remove(ctx, expiryKey(key))
		return "", false, nil
	}
	return s.sm.GetString(ctx, key), true, nil
}

func (s *LocalStore) Write(ctx context.Context, key, value string, maxAge time.Duration) error {
	s.sm.Put(ctx, key, value)
	if maxAge > 0 {
		s.sm.Put(ctx, expiryKey(key), time.Now().Add(maxAge))
	} else {
		s.sm.Remove(ctx, expiryKey(key))
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context, key string) error {
	s.sm.Remove(ctx, key)
	s.sm.Remove(ctx, expiryKey(key))
	return nil
}
