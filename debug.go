package feedcache

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const maxLoggedBody = 4000

// DebugLogger writes one logfmt-style line per feed API exchange or load
// cycle. A nil or disabled logger discards everything.
type DebugLogger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// NewDebugLogger returns a disabled logger unless enabled is set. Lines go to
// logPath when given, stderr otherwise.
func NewDebugLogger(enabled bool, logPath string) (*DebugLogger, error) {
	if !enabled {
		return &DebugLogger{}, nil
	}
	if logPath == "" {
		return newWriterLogger(os.Stderr), nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	l := newWriterLogger(f)
	l.closer = f
	return l, nil
}

func newWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w, now: time.Now}
}

// Enabled reports whether lines are written.
func (l *DebugLogger) Enabled() bool {
	return l != nil && l.w != nil
}

// Close closes the log file, if any.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// LogRequest records an outgoing feed API request.
func (l *DebugLogger) LogRequest(method, url string) {
	l.write("request", "method", method, "url", url)
}

// LogResponse records a feed API response and its body.
func (l *DebugLogger) LogResponse(statusCode int, body []byte) {
	l.write("response", "status", statusCode, "bytes", len(body), "body", clip(body))
}

// LogError records a failed operation.
func (l *DebugLogger) LogError(operation string, err error) {
	l.write("error", "op", operation, "err", err)
}

// LogLoad records the outcome of one load cycle.
func (l *DebugLogger) LogLoad(cycleID string, lt LoadType, label string, res Result, err error) {
	if err != nil {
		l.write("load", "cycle", cycleID, "type", lt, "label", label, "err", err)
		return
	}
	l.write("load", "cycle", cycleID, "type", lt, "label", label,
		"fetched", res.Fetched, "end", res.EndOfPagination)
}

// write emits event followed by key=value pairs. Values containing spaces
// or quotes are quoted.
func (l *DebugLogger) write(event string, kv ...any) {
	if !l.Enabled() {
		return
	}

	var sb strings.Builder
	sb.WriteString(l.now().UTC().Format(time.RFC3339Nano))
	sb.WriteString(" feedcache ")
	sb.WriteString(event)
	for i := 0; i+1 < len(kv); i += 2 {
		v := fmt.Sprint(kv[i+1])
		if v == "" || strings.ContainsAny(v, " \"=\n\t") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&sb, " %s=%s", kv[i], v)
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, sb.String())
}

func clip(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return string(body[:maxLoggedBody]) + "..."
}
