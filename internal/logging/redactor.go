package logging

import (
	"strings"
)

const redactedValue = "[REDACTED]"

// defaultSensitiveKeys are field names whose values never reach the log.
// Keys are matched case-insensitively.
var defaultSensitiveKeys = []string{
	// Credentials and session material
	"password",
	"token",
	"session_token",
	"authorization",
	"secret",

	// SRP-6a values that reveal or help derive the password or session key.
	// Public values A and B are safe to log.
	"verifier",
	"salt",
	"v",
	"x",
	"a",
	"b",
	"s",
	"k",
	"premaster",
	"session_key",
	"m1",
	"m2",
	"proof",

	// TLS material
	"private_key",
	"tls_key",
}

// Redactor masks sensitive values in log fields.
type Redactor struct {
	sensitiveKeys map[string]bool
}

// NewRedactor creates a Redactor with the default sensitive keys.
func NewRedactor() *Redactor {
	r := &Redactor{sensitiveKeys: make(map[string]bool, len(defaultSensitiveKeys))}
	for _, k := range defaultSensitiveKeys {
		r.sensitiveKeys[k] = true
	}
	return r
}

// AddSensitiveKey adds a key to the redaction list.
func (r *Redactor) AddSensitiveKey(key string) {
	r.sensitiveKeys[strings.ToLower(key)] = true
}

// RemoveSensitiveKey removes a key from the redaction list.
func (r *Redactor) RemoveSensitiveKey(key string) {
	delete(r.sensitiveKeys, strings.ToLower(key))
}

// RedactFields returns a copy of fields with sensitive values masked. Raw
// byte slices are always masked; callers that want a value logged encode it.
// Nested maps are redacted recursively.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}

	redacted := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case []byte:
			redacted[k] = redactedValue
		case map[string]any:
			if r.isSensitiveKey(k) {
				redacted[k] = redactedValue
			} else {
				redacted[k] = r.RedactFields(val)
			}
		default:
			if r.isSensitiveKey(k) {
				redacted[k] = redactedValue
			} else {
				redacted[k] = v
			}
		}
	}
	return redacted
}

// RedactString masks s entirely if it looks like it carries a sensitive
// key=value, key: value or "key": pair. Single-letter keys are skipped here
// since they match ordinary prose.
func (r *Redactor) RedactString(s string) string {
	lower := strings.ToLower(s)
	for key := range r.sensitiveKeys {
		if len(key) < 2 {
			continue
		}
		for _, pattern := range []string{key + "=", key + ": ", `"` + key + `":`} {
			if strings.Contains(lower, pattern) {
				return redactedValue
			}
		}
	}
	return s
}

func (r *Redactor) isSensitiveKey(key string) bool {
	return r.sensitiveKeys[strings.ToLower(key)]
}
