package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in logs.
const RedactedValue = "[REDACTED]"

// Keys logged verbatim. Vault owners, liquidators and feed ids are public
// protocol data; anything else passed through MaskField is hidden.
var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"component":  {},
	"operation":  {},
	"outcome":    {},
	"code":       {},
	"category":   {},
	"receipt":    {},
	"owner":      {},
	"liquidator": {},
	"feed":       {},
}

// IsAllowlisted reports whether key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField redacts value unless key is allowlisted. Empty values pass through
// so missing configuration stays visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskSecret keeps the last four characters of long secrets such as API keys
// so operators can tell credentials apart.
func MaskSecret(key, value string) slog.Attr {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return slog.String(key, "")
	}
	if len(trimmed) <= 8 {
		return slog.String(key, RedactedValue)
	}
	return slog.String(key, RedactedValue+trimmed[len(trimmed)-4:])
}
