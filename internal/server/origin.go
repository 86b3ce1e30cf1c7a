package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

func normalizeOrigins(origins []string, logger *slog.Logger) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		n, ok := normalizeOrigin(trimmed)
		if !ok {
			logger.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		normalized[n] = struct{}{}
	}
	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// originChecker builds the upgrader's CheckOrigin. With no configured
// origins it returns nil, which keeps gorilla's same-origin check.
func originChecker(origins []string, logger *slog.Logger) func(*http.Request) bool {
	allowed, allowAll := normalizeOrigins(origins, logger)
	if allowAll {
		return func(*http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		header := r.Header.Get("Origin")
		if header == "" {
			return true
		}
		n, ok := normalizeOrigin(header)
		if ok {
			if _, exists := allowed[n]; exists {
				return true
			}
		}
		logger.Warn("blocked websocket connection from disallowed origin", "origin", header)
		return false
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close sent") ||
		strings.Contains(msg, "broken pipe")
}
