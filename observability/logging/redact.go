package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces credential material in log output.
const RedactedValue = "[REDACTED]"

// plainKeys never carry credentials and are logged verbatim.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"reason":    {},
	"route":     {},
	"operation": {},
	"driver":    {},
	"issuer":    {},
	"audience":  {},
}

// IsPlainKey reports whether values logged under key are exempt from masking.
func IsPlainKey(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute that hides value unless key is a plain key.
// Empty values pass through so an unset secret stays visible as unset.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlainKey(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN hides the password in a journal connection string. URL passwords
// become xxxxx, keyword passwords become RedactedValue; sqlite paths carry no
// credentials and are returned as is.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return trimmed
	}
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return RedactedValue
		}
		return parsed.Redacted()
	}
	fields := strings.Fields(trimmed)
	for i, field := range fields {
		name, _, found := strings.Cut(field, "=")
		if found && strings.EqualFold(name, "password") {
			fields[i] = name + "=" + RedactedValue
		}
	}
	return strings.Join(fields, " ")
}
