// Package session resolves the anonymous pre-registration session that CAPTCHA
// challenges and behavior telemetry are bound to.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"wishguard/pkg/requestcontext"
)

const (
	HeaderName = "X-Session-ID"
	CookieName = "wg_session"
	cookieTTL  = 30 * time.Minute
)

// Middleware reads the session ID from the X-Session-ID header or the session
// cookie, minting and setting a new cookie when neither is present.
func Middleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := FromRequest(r)
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    sid,
					Path:     "/",
					MaxAge:   int(cookieTTL.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(r.Context(), sid)))
		})
	}
}

// FromRequest returns the caller-supplied session ID, or "" when absent.
func FromRequest(r *http.Request) string {
	if sid := r.Header.Get(HeaderName); valid(sid) {
		return sid
	}
	if c, err := r.Cookie(CookieName); err == nil && valid(c.Value) {
		return c.Value
	}
	return ""
}

func valid(sid string) bool {
	return sid != "" && len(sid) <= 64
}
