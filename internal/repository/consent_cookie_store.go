package repository

import (
	"net/http"
	"net/url"
	"time"
)

// CookieStore keeps string entries in client cookies for the lifetime of one
// request. Writes are visible to later reads on the same store.
type CookieStore struct {
	r       *http.Request
	w       http.ResponseWriter
	maxAge  time.Duration
	domain  string
	secure  bool
	pending map[string]*string
}

// CookieOptions configures the Set-Cookie attributes of a CookieStore.
type CookieOptions struct {
	MaxAge time.Duration
	Domain string
	Secure bool
}

// NewCookieStore binds a store to the current request and response.
func NewCookieStore(r *http.Request, w http.ResponseWriter, opts CookieOptions) *CookieStore {
	return &CookieStore{
		r:       r,
		w:       w,
		maxAge:  opts.MaxAge,
		domain:  opts.Domain,
		secure:  opts.Secure,
		pending: make(map[string]*string),
	}
}

// Get returns the decoded cookie value.
func (s *CookieStore) Get(key string) (string, bool) {
	if value, ok := s.pending[key]; ok {
		if value == nil {
			return "", false
		}
		return *value, true
	}
	if s.r == nil {
		return "", false
	}
	cookie, err := s.r.Cookie(key)
	if err != nil {
		return "", false
	}
	value, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		// undecodable values are handed back raw and rejected by the caller
		return cookie.Value, true
	}
	return value, true
}

// Set writes the value as a cookie.
func (s *CookieStore) Set(key, value string) {
	s.pending[key] = &value
	s.write(&http.Cookie{
		Name:   key,
		Value:  url.QueryEscape(value),
		MaxAge: int(s.maxAge.Seconds()),
	})
}

// Remove expires the cookie.
func (s *CookieStore) Remove(key string) {
	s.pending[key] = nil
	s.write(&http.Cookie{Name: key, MaxAge: -1})
}

func (s *CookieStore) write(cookie *http.Cookie) {
	if s.w == nil {
		return
	}
	cookie.Path = "/"
	cookie.Domain = s.domain
	cookie.Secure = s.secure
	cookie.HttpOnly = true
	cookie.SameSite = http.SameSiteLaxMode
	http.SetCookie(s.w, cookie)
}
