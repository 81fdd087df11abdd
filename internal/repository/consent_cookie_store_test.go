package repository

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieStoreReadsRequestCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "record", Value: url.QueryEscape(`{"essential":true}`)})
	store := NewCookieStore(req, httptest.NewRecorder(), CookieOptions{})

	value, ok := store.Get("record")
	require.True(t, ok)
	assert.Equal(t, `{"essential":true}`, value)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestCookieStoreWritesAreVisibleAndEmitted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "stale", Value: "1"})
	rec := httptest.NewRecorder()
	store := NewCookieStore(req, rec, CookieOptions{MaxAge: 24 * time.Hour, Secure: true})

	store.Set("record", `{"analytics":false}`)
	store.Remove("stale")

	value, ok := store.Get("record")
	require.True(t, ok)
	assert.Equal(t, `{"analytics":false}`, value)
	_, ok = store.Get("stale")
	assert.False(t, ok)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "record", cookies[0].Name)
	assert.Equal(t, 86400, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "stale", cookies[1].Name)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
