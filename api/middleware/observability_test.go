package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type countingPanics struct{ n int }

func (c *countingPanics) IncPanic() { c.n++ }

type sample struct {
	method string
	route  string
	status int
}

type recordingObserver struct{ samples []sample }

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.samples = append(o.samples, sample{method: method, route: route, status: status})
}

func TestRecovererWritesInternalError(t *testing.T) {
	counter := &countingPanics{}
	handler := Recoverer(nil, counter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "boom") {
		t.Fatalf("panic value leaked to client: %s", resp.Body.String())
	}
	if counter.n != 1 {
		t.Fatalf("expected one panic counted, got %d", counter.n)
	}
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRequestIDKeepsValidHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "edge-7f3a.01")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if seen != "edge-7f3a.01" || resp.Header().Get(requestIDHeader) != "edge-7f3a.01" {
		t.Fatalf("expected propagated id, got ctx=%q header=%q", seen, resp.Header().Get(requestIDHeader))
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	for _, raw := range []string{"", "has space", "inject\r\nx: y", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, raw)
		resp := httptest.NewRecorder()
		RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(resp, req)

		got := resp.Header().Get(requestIDHeader)
		if got == raw || len(got) != 36 {
			t.Fatalf("%q: expected generated uuid, got %q", raw, got)
		}
	}
}

func TestLoggingReportsRoutePattern(t *testing.T) {
	observer := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Logging(nil, observer))
	r.Get("/projects/{projectId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/projects/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if len(observer.samples) != 2 {
		t.Fatalf("expected two samples, got %d", len(observer.samples))
	}
	if got := observer.samples[0]; got.route != "/projects/{projectId}" || got.status != http.StatusAccepted {
		t.Fatalf("unexpected sample %+v", got)
	}
	if got := observer.samples[1]; got.status != http.StatusNotFound {
		t.Fatalf("expected 404 sample, got %+v", got)
	}
}
