package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ssargent/primefusion/pkg/sessionkey"
	"github.com/ssargent/primefusion/pkg/store"
)

func TestRouter_RequiresAPIKey(t *testing.T) {
	_, h := setupTestServer(t, ServerConfig{})

	for _, path := range []string{"/api/v1/health", "/api/v1/beacons"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", path, w.Code)
		}
	}

	// Metrics stay open for scraping.
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for /metrics, got %d", w.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	_, h := setupTestServer(t, ServerConfig{})

	req := httptest.NewRequest("OPTIONS", "/api/v1/trailers", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestNewServer_Defaults(t *testing.T) {
	server := NewServer(nil, nil, ServerConfig{StrictTips: true}, nil)

	if server.config.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("Expected default body limit, got %d", server.config.MaxBodyBytes)
	}
	if !server.codec.StrictTips {
		t.Error("Expected strict tip codec")
	}
}

func TestStartServer_Shutdown(t *testing.T) {
	journal, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer journal.Close()

	keys, err := sessionkey.NewStatic(testSessionKey)
	if err != nil {
		t.Fatalf("Failed to create key source: %v", err)
	}

	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServerFactory().CreateServerStarter().StartServer(ctx, journal, keys, ServerConfig{
			Port:   port,
			Bind:   "127.0.0.1",
			APIKey: testAPIKey,
		})
	}()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/api/v1/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequest("GET", url, nil)
		req.Header.Set("X-API-Key", testAPIKey)
		resp, err = http.DefaultClient.Do(req)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("Server never became reachable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
