package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"
)

// Base64 images and audio clips dominate request bodies; any JSON string
// at least this long is replaced with its size before it reaches the file.
const elideThreshold = 512

var payloadString = regexp.MustCompile(fmt.Sprintf(`"[^"\\]{%d,}"`, elideThreshold))

// TraceEntry is one provider round trip, written as a single NDJSON line.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Credential  string          `json:"credential,omitempty"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

type traceSink struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

func (s *traceSink) write(entry TraceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(entry)
}

func (s *traceSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}

var activeSink atomic.Pointer[traceSink]

// EnableTracing appends provider traces to path until the returned func
// (or DisableTracing) is called. A previously enabled sink is closed.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	sink := &traceSink{out: f, enc: json.NewEncoder(f)}
	if prev := activeSink.Swap(sink); prev != nil {
		_ = prev.close()
	}
	return func() {
		if activeSink.CompareAndSwap(sink, nil) {
			_ = sink.close()
		}
	}, nil
}

func DisableTracing() {
	if prev := activeSink.Swap(nil); prev != nil {
		_ = prev.close()
	}
}

func IsTracingEnabled() bool {
	return activeSink.Load() != nil
}

// Trace writes entry when tracing is on. Payloads are elided in both
// directions; transcripts and OCR text stay intact because they are short.
func Trace(entry TraceEntry) {
	sink := activeSink.Load()
	if sink == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.RequestBody = elidePayloads(entry.RequestBody)
	entry.Response = elidePayloads(entry.Response)
	sink.write(entry)
}

// MaskKey keeps the last four characters of an API key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func elidePayloads(body json.RawMessage) json.RawMessage {
	if len(body) < elideThreshold {
		return body
	}
	return payloadString.ReplaceAllFunc(body, func(match []byte) []byte {
		return fmt.Appendf(nil, `"<omitted %d bytes>"`, len(match)-2)
	})
}
