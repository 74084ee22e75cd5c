package logging

import (
	"log/slog"
	"strings"
)

// sensitiveKeys are matched against the lowercased field key. Matching string
// values are passed through Redact before they reach any sink.
var sensitiveKeys = []string{"token", "csrf", "cookie", "authorization", "session"}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if strings.HasSuffix(lower, "_meta") {
		return false
	}
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func fieldValue(attr slog.Attr) any {
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		return fieldsFromAttrs(v.Group())
	}
	if v.Kind() == slog.KindString && isSensitiveKey(attr.Key) {
		return Redact(v.String())
	}
	return v.Any()
}

// fieldsFromAttrs flattens attrs into the map stored on Event.Fields; groups
// become nested maps and empty keys are dropped.
func fieldsFromAttrs(attrs []slog.Attr) map[string]any {
	var out map[string]any
	for _, attr := range attrs {
		if attr.Key == "" {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(attrs))
		}
		out[attr.Key] = fieldValue(attr)
	}
	return out
}
