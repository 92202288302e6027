package logging

import (
	"net/http"
	"time"
)

// DebugTransport logs method, redacted URL, status and latency of each
// request passing through it.
type DebugTransport struct {
	next   http.RoundTripper
	logger Logger
}

func NewDebugTransport(next http.RoundTripper, logger Logger) *DebugTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DebugTransport{next: next, logger: logger}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	target := redactSensitiveData(req.URL.String())
	logger := t.logger.WithContext(req.Context())

	logger.Debug("HTTP request",
		F("method", req.Method),
		F("url", target),
		F("contentLength", req.ContentLength),
	)

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		logger.Debug("HTTP request failed",
			F("method", req.Method),
			F("url", target),
			F("error", err.Error()),
			F("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}

	logger.Debug("HTTP response",
		F("method", req.Method),
		F("url", target),
		F("status", resp.StatusCode),
		F("duration_ms", time.Since(start).Milliseconds()),
	)
	return resp, nil
}
