package middleware

import "net/http"

// AdminSessionCookie holds the access token of an administrator who signed in
// through the site's login form.
const AdminSessionCookie = "labsite-admin-session"

// AdminCookie writes and clears the admin session cookie. The cookie is
// HttpOnly and SameSite=Strict, so cross-site form posts never carry it.
type AdminCookie struct {
	Secure bool
}

// Set stores token for maxAge seconds.
func (a AdminCookie) Set(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the cookie.
func (a AdminCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
