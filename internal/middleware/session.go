package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/citytransit/backend/internal/auth"
	"github.com/citytransit/backend/internal/sessions"
)

// Session returns the per-request authentication gate. For requests with
// side effects it first requires the Origin header to match the serving
// host; a missing or mismatched origin makes the request unauthenticated
// no matter what cookie it carries. It then reads the session id from
// the raw Cookie header, validates it, writes the rotated or blank
// cookie when the store asks for one, and puts {user, session} in the
// request context for downstream handlers. It never rejects a request
// itself; route guards decide whether authentication is required.
func Session(store *sessions.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !safeMethod(r.Method) && !originAllowed(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Read the raw header rather than r.Cookie to avoid any
			// parsing normalization of the value.
			sessionID := readSessionCookie(r.Header.Get("Cookie"), store.CookieName())
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, user, err := store.Validate(r.Context(), sessionID)
			if err != nil {
				logger.Error("session validation failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				http.SetCookie(w, store.BlankCookie())
				next.ServeHTTP(w, r)
				return
			}
			if session.Fresh {
				http.SetCookie(w, store.Cookie(session))
			}

			ctx := auth.WithIdentity(r.Context(), user, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth guards a route: requests without a validated session get a
// bare 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFrom(r.Context()); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// originAllowed reports whether the request's declared Origin matches
// the host it was served on. Browsers always attach Origin to cross-site
// unsafe requests, so a forged request either misses the header or names
// a foreign host.
func originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == host
}

// readSessionCookie extracts the named cookie's value from a raw Cookie
// header.
func readSessionCookie(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if ok && k == name {
			return v
		}
	}
	return ""
}
