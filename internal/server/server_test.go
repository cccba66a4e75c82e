package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/keyval/internal/clock"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startTestServer(t *testing.T, s storage.Store, clk clock.Clock) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), s, clk, quietLogger())
	go srv.StartOnListener(ln)
	baseURL := "http://" + ln.Addr().String()
	return baseURL, func() {
		srv.Shutdown(context.Background())
	}
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestServer_Health(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, storage.NewMemoryStore(vc), vc)
	defer cleanup()

	resp, body := do(t, http.MethodGet, baseURL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health map[string]any
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatal(err)
	}
	if health["backend"] != "memory" || health["ttl"] != true {
		t.Errorf("health = %v", health)
	}
}

func TestServer_PutGetDelete(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, storage.NewMemoryStore(vc), vc)
	defer cleanup()

	resp, _ := do(t, http.MethodPut, baseURL+"/v1/keys/greeting", "hello")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d, want 204", resp.StatusCode)
	}

	resp, body := do(t, http.MethodGet, baseURL+"/v1/keys/greeting", "")
	if resp.StatusCode != http.StatusOK || body != "hello" {
		t.Fatalf("GET = %d %q, want 200 %q", resp.StatusCode, body, "hello")
	}

	resp, _ = do(t, http.MethodDelete, baseURL+"/v1/keys/greeting", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodDelete, baseURL+"/v1/keys/greeting", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("second DELETE status = %d, want 204", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, baseURL+"/v1/keys/greeting", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ExpiredIsGone(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	s := storage.NewTTLOverlay(storage.NewMemoryStore(vc), vc, nil)
	baseURL, cleanup := startTestServer(t, s, vc)
	defer cleanup()

	resp, _ := do(t, http.MethodPut, baseURL+"/v1/keys/session?ttl=10s", "token")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	vc.Advance(5 * time.Second)
	resp, _ = do(t, http.MethodPost, baseURL+"/v1/keys/session/touch?ttl=1m", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("touch status = %d", resp.StatusCode)
	}

	vc.Advance(30 * time.Second)
	resp, body := do(t, http.MethodGet, baseURL+"/v1/keys/session", "")
	if resp.StatusCode != http.StatusOK || body != "token" {
		t.Fatalf("GET after touch = %d %q", resp.StatusCode, body)
	}

	vc.Advance(time.Hour)
	resp, _ = do(t, http.MethodGet, baseURL+"/v1/keys/session", "")
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("GET after expiry status = %d, want 410", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, baseURL+"/v1/keys/session", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second GET after expiry status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_TouchMissing(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, storage.NewMemoryStore(vc), vc)
	defer cleanup()

	resp, _ := do(t, http.MethodPost, baseURL+"/v1/keys/nope/touch?ttl=1m", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("touch missing status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_BadTTL(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, storage.NewMemoryStore(vc), vc)
	defer cleanup()

	for _, url := range []string{
		"/v1/keys/k?ttl=soon",
		"/v1/keys/k?ttl=-1s",
	} {
		resp, _ := do(t, http.MethodPut, baseURL+url, "v")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("PUT %s status = %d, want 400", url, resp.StatusCode)
		}
	}

	resp, _ := do(t, http.MethodPost, baseURL+"/v1/keys/k/touch", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("touch without ttl status = %d, want 400", resp.StatusCode)
	}
}

// rawOnly hides the TTL methods of a store.
type rawOnly struct{ storage.Store }

func TestServer_TTLUnsupported(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, rawOnly{storage.NewMemoryStore(vc)}, vc)
	defer cleanup()

	resp, _ := do(t, http.MethodPut, baseURL+"/v1/keys/k?ttl=1m", "v")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("PUT with ttl status = %d, want 501", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPut, baseURL+"/v1/keys/k", "v")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("PUT without ttl status = %d, want 204", resp.StatusCode)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, storage.NewMemoryStore(vc), vc)
	defer cleanup()

	resp, _ := do(t, http.MethodPatch, baseURL+"/v1/keys/k", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("PATCH status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrExpired, http.StatusGone},
		{&storage.ScheduleError{Err: boom}, http.StatusServiceUnavailable},
		{&storage.DecodeError{Err: boom}, http.StatusUnprocessableEntity},
		{&storage.EncodeError{Err: boom}, http.StatusUnprocessableEntity},
		{&storage.BackendError{Err: boom}, http.StatusBadGateway},
		{boom, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
