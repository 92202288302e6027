package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDebugTransport_LogsRedactedRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf, Level: DEBUG})
	client := &http.Client{Transport: NewDebugTransport(nil, logger)}

	resp, err := client.Get(srv.URL + "/dl?id=1&access_token=supersecret")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Errorf("access token leaked: %s", out)
	}
	if !strings.Contains(out, "HTTP response") || !strings.Contains(out, "418") {
		t.Errorf("response not logged: %s", out)
	}
}
