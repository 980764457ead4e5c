package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/ssargent/primefusion/pkg/beacon"
	"github.com/ssargent/primefusion/pkg/frame"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/logging"
	"github.com/ssargent/primefusion/pkg/sessionkey"
	"github.com/ssargent/primefusion/pkg/store"
)

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"matching key", "test-key", http.StatusOK, ""},
		{"no header", "", http.StatusUnauthorized, "Missing X-API-Key header"},
		{"wrong key", "wrong-key", http.StatusUnauthorized, "Invalid API key"},
		{"key prefix", "test", http.StatusUnauthorized, "Invalid API key"},
	}

	reached := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := apiKeyMiddleware("test-key")(reached)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/trailers/encode", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.message == "" {
				return
			}
			resp := decodeEnvelope(t, w)
			if resp.Success || resp.Error != tt.message {
				t.Errorf("Expected error %q, got %+v", tt.message, resp)
			}
		})
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Expected Content-Type application/json, got %s", ct)
	}
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not an envelope: %v: %s", err, w.Body.String())
	}
	return resp
}

func TestSendHelpers(t *testing.T) {
	fields := fusion.Fields{Epoch: 11, RootID: 0xCAFE, Tips: [2]int{0x123, 0x456}}

	w := httptest.NewRecorder()
	sendSuccess(w, newFieldsResponse(fields))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if resp := decodeEnvelope(t, w); !resp.Success || resp.Error != "" {
		t.Errorf("Unexpected envelope: %+v", resp)
	}

	w = httptest.NewRecorder()
	sendCreated(w, CreateBeaconResponse{ID: "x"})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":"x"`) {
		t.Errorf("Expected id in body, got %s", w.Body.String())
	}

	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		sendError(w, "trailer rejected", status)
		if w.Code != status {
			t.Errorf("Expected status %d, got %d", status, w.Code)
		}
		resp := decodeEnvelope(t, w)
		if resp.Success || resp.Error != "trailer rejected" || resp.Data != nil {
			t.Errorf("Unexpected error envelope: %+v", resp)
		}
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"range", fmt.Errorf("%w: root", fusion.ErrRange), http.StatusBadRequest},
		{"format", fusion.ErrFormat, http.StatusBadRequest},
		{"integrity", fusion.ErrIntegrity, http.StatusUnprocessableEntity},
		{"authentication", fmt.Errorf("wrapped: %w", fusion.ErrAuthentication), http.StatusUnprocessableEntity},
		{"frame", frame.ErrLengthMismatch, http.StatusBadRequest},
		{"frame flags", frame.ErrUnknownFlags, http.StatusBadRequest},
		{"missing trailer", frame.ErrMissingTrailer, http.StatusBadRequest},
		{"header", beacon.ErrInvalidHeader, http.StatusBadRequest},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"invalid id", store.ErrInvalidID, http.StatusBadRequest},
		{"epoch", sessionkey.ErrInvalidEpoch, http.StatusBadRequest},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, got)
			}
		})
	}
}

func TestCodecResult(t *testing.T) {
	tests := map[string]error{
		"ok":             nil,
		"range":          fusion.ErrRange,
		"format":         fusion.ErrFormat,
		"integrity":      fusion.ErrIntegrity,
		"authentication": fusion.ErrAuthentication,
		"error":          errors.New("other"),
	}
	for want, err := range tests {
		if got := codecResult(err); got != want {
			t.Errorf("Expected %s for %v, got %s", want, err, got)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	handler := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.GetLoggerFromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	// The handler logs through the request scoped entry.
	if !strings.Contains(lines[0], `"msg":"inside"`) || !strings.Contains(lines[0], `"path":"/api/v1/health"`) {
		t.Errorf("Unexpected handler log line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"status":418`) {
		t.Errorf("Unexpected request log line: %s", lines[1])
	}
}
