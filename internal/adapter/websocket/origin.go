package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

// NewCheckOrigin returns the upgrader's origin policy. Requests without an
// Origin header (non-browser clients) pass, as do the app's own origin and any
// origin listed in allowed. Localhost origins pass only in development.
func NewCheckOrigin(appURL string, allowed []string, isDevelopment bool) func(r *http.Request) bool {
	origins := []string{extractOrigin(appURL)}
	for _, raw := range allowed {
		if origin := extractOrigin(raw); origin != "" {
			origins = append(origins, origin)
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if slices.Contains(origins, origin) {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
