package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddlewareGenerates(t *testing.T) {
	var seen string
	h := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request ID in context")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", seen, err)
	}
	if got := w.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("header request ID = %q, context has %q", got, seen)
	}
}

func TestRequestIDMiddlewareReusesValid(t *testing.T) {
	id := uuid.NewString()
	h := requestIDMiddleware()(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != id {
		t.Errorf("request ID = %q, want caller's %q", got, id)
	}
}

func TestRequestIDMiddlewareRejectsInvalid(t *testing.T) {
	h := requestIDMiddleware()(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "injection\r\nattempt")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	got := w.Header().Get("X-Request-ID")
	if got == "injection\r\nattempt" {
		t.Error("invalid request ID was echoed back")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("replacement ID %q is not a UUID: %v", got, err)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSMiddlewareDisallowedOrigin(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:4200"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestCORSMiddlewareWildcard(t *testing.T) {
	h := corsMiddleware([]string{"*"})(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://anywhere.example" {
		t.Errorf("Allow-Origin = %q, want reflected origin", got)
	}
}

func TestLoggingWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	lw.WriteHeader(http.StatusTeapot)
	if _, err := lw.Write([]byte("short and stout")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if lw.statusCode != http.StatusTeapot {
		t.Errorf("statusCode = %d, want %d", lw.statusCode, http.StatusTeapot)
	}
	if lw.bytesWritten != int64(len("short and stout")) {
		t.Errorf("bytesWritten = %d", lw.bytesWritten)
	}
}

func TestLoggingWriterImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	if _, err := lw.Write([]byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if lw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", lw.statusCode, http.StatusOK)
	}
}
