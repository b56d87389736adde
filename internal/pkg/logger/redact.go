package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactValue masks any email address embedded in a field value,
// regardless of the field key. Keys that clearly hold recipient data
// ("email", "recipient", "recipients") are also masked when the value
// doesn't parse as an address at all.
func redactValue(key, val string) string {
	out := emailPattern.ReplaceAllStringFunc(val, RedactEmail)
	if out != val {
		return out
	}
	k := strings.ToLower(key)
	if (strings.Contains(k, "email") || strings.Contains(k, "recipient")) && strings.Contains(val, "@") {
		return RedactEmail(val)
	}
	return val
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
