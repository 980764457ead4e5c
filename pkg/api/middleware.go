package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"

	"github.com/ssargent/primefusion/pkg/beacon"
	"github.com/ssargent/primefusion/pkg/frame"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/logging"
	"github.com/ssargent/primefusion/pkg/sessionkey"
	"github.com/ssargent/primefusion/pkg/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// apiKeyMiddleware validates the X-API-Key header
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs each request through logrus and stores a request
// scoped entry in the context.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": middleware.GetReqID(r.Context()),
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.SetLoggerToContext(r.Context(), entry)))

			entry.WithFields(log.Fields{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			}).Info("request")
		})
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	sendJSON(w, http.StatusOK, data)
}

func sendCreated(w http.ResponseWriter, data interface{}) {
	sendJSON(w, http.StatusCreated, data)
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// statusForError maps codec, frame and journal errors to HTTP status codes.
func statusForError(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fusion.ErrIntegrity),
		errors.Is(err, fusion.ErrAuthentication):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fusion.ErrRange),
		errors.Is(err, fusion.ErrFormat),
		errors.Is(err, frame.ErrShortHeader),
		errors.Is(err, frame.ErrUnsupportedVersion),
		errors.Is(err, frame.ErrUnknownFlags),
		errors.Is(err, frame.ErrLengthMismatch),
		errors.Is(err, frame.ErrHeaderTooLarge),
		errors.Is(err, frame.ErrPayloadTooLarge),
		errors.Is(err, frame.ErrMissingTrailer),
		errors.Is(err, beacon.ErrInvalidHeader),
		errors.Is(err, sessionkey.ErrInvalidEpoch),
		errors.Is(err, store.ErrInvalidBeacon),
		errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// codecResult is the result label recorded for a codec operation.
func codecResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fusion.ErrRange):
		return "range"
	case errors.Is(err, fusion.ErrFormat):
		return "format"
	case errors.Is(err, fusion.ErrIntegrity):
		return "integrity"
	case errors.Is(err, fusion.ErrAuthentication):
		return "authentication"
	default:
		return "error"
	}
}
