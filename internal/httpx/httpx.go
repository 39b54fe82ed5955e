// Package httpx holds the JSON request and response helpers shared by every
// API handler.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/logging"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache keeps identity-dependent responses out of shared caches.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// OK writes {"ok": true}.
func OK(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Error writes {"error": msg} with the status of err's kind. Internal causes
// are logged and never sent to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			"path", r.URL.Path,
			"err", err,
		)
	}
	WriteJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

// TooMany writes a 429 with Retry-After in whole seconds, never less than 1.
func TooMany(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	Error(w, r, apperr.ErrTooMany)
}

// Body is a decoded JSON object. Handlers validate fields one by one, so
// values stay untyped until then.
type Body map[string]any

// Get returns the raw value for key, nil when absent.
func (b Body) Get(key string) any {
	if b == nil {
		return nil
	}
	return b[key]
}

// DecodeBody reads a JSON object from r. Anything else, including an empty
// body, reports false.
func DecodeBody(r *http.Request) (Body, bool) {
	if r.Body == nil {
		return nil, false
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	var b Body
	if err := dec.Decode(&b); err != nil {
		return nil, false
	}
	if b == nil {
		return nil, false
	}
	return b, true
}
