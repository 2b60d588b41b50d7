// Package logging emits structured JSON log lines. Request-scoped tags are
// plain field maps passed by parameter; there is no ambient or goroutine-local
// state to leak between requests.
package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields is a set of structured key/value tags attached to a log line.
type Fields map[string]interface{}

// With returns a copy of f extended with the given fields. The receiver is
// never mutated, so a base field set can be shared across a request.
func (f Fields) With(extra Fields) Fields {
	out := make(Fields, len(f)+len(extra))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func Info(message string, fields Fields) {
	logJSON("info", message, fields)
}

func Warn(message string, fields Fields) {
	logJSON("warn", message, fields)
}

func Error(message string, fields Fields) {
	logJSON("error", message, fields)
}

func logJSON(level string, message string, fields Fields) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"message":   message,
		"service":   "checkout",
	}
	for k, v := range fields {
		entry[k] = v
	}

	b, _ := json.Marshal(entry)
	log.Println(string(b))
}
