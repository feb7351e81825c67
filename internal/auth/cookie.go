package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie carried by the admin dashboard.
const CookieName = "auth-token"

// SessionCookie returns the cookie directive carrying a freshly issued
// credential. Secure is only set in production so local development over
// plain HTTP keeps working.
func SessionCookie(token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie returns the revocation directive. MaxAge<0 renders as
// Max-Age=0 on the wire and Expires is pinned to the epoch; clients may
// honor either signal, so both are set.
func ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}
