package logger

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

const redactedValue = "***REDACTED***"

// Substrings that mark a key as carrying credentials.
var secretMarkers = []string{"password", "secret", "token", "credential", "authorization", "bearer"}

// Envelope payload keys. Logs carry only their size.
var payloadKeys = []string{"payload", "body"}

func redactSensitive(a slog.Attr) slog.Attr {
	switch {
	case a.Value.Kind() == slog.KindGroup:
		group := slices.Clone(a.Value.Group())
		for i := range group {
			group[i] = redactSensitive(group[i])
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(group...)}
	case IsPayloadKey(a.Key):
		switch v := a.Value.Any().(type) {
		case []byte:
			return slog.String(a.Key, SummarizePayload(v))
		case string:
			return slog.String(a.Key, SummarizePayload([]byte(v)))
		}
	case a.Value.Kind() == slog.KindString && a.Value.String() != "" && IsSensitiveKey(a.Key):
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// SummarizePayload renders p as its length, e.g. "[11 bytes]".
func SummarizePayload(p []byte) string {
	return "[" + strconv.Itoa(len(p)) + " bytes]"
}

func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	return slices.ContainsFunc(secretMarkers, func(m string) bool { return strings.Contains(key, m) })
}

// IsPayloadKey matches whole keys only, so payload_size is logged as is.
func IsPayloadKey(key string) bool {
	return slices.Contains(payloadKeys, strings.ToLower(key))
}
