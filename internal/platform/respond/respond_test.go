package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	applog "github.com/janisto/probe-responder/internal/platform/logging"
)

func newProbeRouter() *chi.Mux {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())
	router.MethodNotAllowed(MethodNotAllowedHandler())
	router.Use(Recoverer())
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router.Get("/health", ok)
	router.Get("/ready", ok)
	return router
}

func decodeProblem(t *testing.T, resp *httptest.ResponseRecorder) huma.ErrorModel {
	t.Helper()
	var problem huma.ErrorModel
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal problem: %v", err)
	}
	return problem
}

func TestNotFoundHandlerReturnsProblemDetails(t *testing.T) {
	resp := httptest.NewRecorder()
	newProbeRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != contentTypeProblemJSON {
		t.Fatalf("expected application/problem+json, got %q", ct)
	}
	problem := decodeProblem(t, resp)
	if problem.Status != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", problem.Status)
	}
	if problem.Title != "Not Found" {
		t.Fatalf("unexpected title: %s", problem.Title)
	}
	if problem.Detail != "resource not found" {
		t.Fatalf("unexpected detail: %s", problem.Detail)
	}
}

func TestMethodNotAllowedHandlerReturnsProblemDetails(t *testing.T) {
	resp := httptest.NewRecorder()
	newProbeRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/health", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != http.MethodGet {
		t.Fatalf("expected Allow: GET, got %q", allow)
	}
	problem := decodeProblem(t, resp)
	if problem.Title != "Method Not Allowed" {
		t.Fatalf("unexpected title: %s", problem.Title)
	}
	if !strings.Contains(problem.Detail, "POST") {
		t.Fatalf("expected detail to mention POST, got %s", problem.Detail)
	}
}

func TestAllowedMethodsReturned(t *testing.T) {
	router := chi.NewRouter()
	router.MethodNotAllowed(MethodNotAllowedHandler())
	router.Get("/resource", func(w http.ResponseWriter, r *http.Request) {})
	router.Post("/resource", func(w http.ResponseWriter, r *http.Request) {})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/resource", nil))

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if allow := resp.Header().Get("Allow"); allow != "GET, POST" {
		t.Fatalf("expected Allow: GET, POST, got %q", allow)
	}
}

func TestAllowedMethodsNilRouteContext(t *testing.T) {
	if got := allowedMethods(httptest.NewRequest(http.MethodGet, "/", nil)); got != nil {
		t.Fatalf("expected nil without a chi route context, got %v", got)
	}
}

func TestNotFoundHandlerReturnsCBORWhenAccepted(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/cbor")
	resp := httptest.NewRecorder()
	newProbeRouter().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != contentTypeProblemCBOR {
		t.Fatalf("expected application/problem+cbor, got %q", ct)
	}
	var problem huma.ErrorModel
	if err := cbor.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to unmarshal CBOR problem: %v", err)
	}
	if problem.Status != http.StatusNotFound || problem.Title != "Not Found" {
		t.Fatalf("unexpected problem: %+v", problem)
	}
}

func TestHeadRequestGetsHeadersWithoutBody(t *testing.T) {
	resp := httptest.NewRecorder()
	newProbeRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodHead, "/missing", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp.Body.Len() != 0 {
		t.Fatalf("expected empty body for HEAD, got %q", resp.Body.String())
	}
	if resp.Header().Get("Content-Length") == "" {
		t.Fatal("expected Content-Length to describe the omitted body")
	}
}

func TestRecovererReturnsProblemDetails(t *testing.T) {
	router := newProbeRouter()
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	problem := decodeProblem(t, resp)
	if problem.Title != "Internal Server Error" {
		t.Fatalf("unexpected title: %s", problem.Title)
	}
	if problem.Detail != "internal server error" {
		t.Fatalf("unexpected detail: %s", problem.Detail)
	}
}

func TestRecovererWithErrorPanic(t *testing.T) {
	router := newProbeRouter()
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("typed failure"))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestRecovererRePanicsOnErrAbortHandler(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Recoverer())
	router.Get("/abort", func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected http.ErrAbortHandler to be re-panicked, got %v", rec)
		}
	}()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))

	t.Fatal("expected panic to propagate, but handler returned normally")
}

func TestRecovererSkipsWriteWhenHeaderAlreadyWritten(t *testing.T) {
	router := newProbeRouter()
	router.Get("/partial", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial response"))
		panic("panic after write")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/partial", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected original 200 status to be preserved, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "partial response" {
		t.Fatalf("expected original body to be preserved, got %q", body)
	}
}

func TestResponseWriterMethods(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	if rw.wroteHeader {
		t.Fatal("expected wroteHeader to be false initially")
	}
	if n, err := rw.Write([]byte("hello")); err != nil || n != 5 {
		t.Fatalf("unexpected write result: n=%d err=%v", n, err)
	}
	if !rw.wroteHeader {
		t.Fatal("expected wroteHeader to be true after Write")
	}
	if rw.Unwrap() != rec {
		t.Fatal("expected Unwrap to return underlying ResponseWriter")
	}
}

func TestJSONResponseHasNoHTMLEscaping(t *testing.T) {
	resp := httptest.NewRecorder()
	writeProblem(resp, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "<probe> & friends")

	body := resp.Body.String()
	if strings.Contains(body, `\u003c`) || strings.Contains(body, `\u0026`) {
		t.Fatalf("response should not contain HTML-escaped characters: %s", body)
	}
	if !strings.Contains(body, "<probe> & friends") {
		t.Fatalf("expected literal detail in body, got %s", body)
	}
}

func TestEnsureVaryNoDuplicates(t *testing.T) {
	h := make(http.Header)
	h.Add("Vary", "Origin, accept")
	ensureVary(h, "Accept", "Accept-Encoding", "Accept-Encoding")

	values := h.Values("Vary")
	if len(values) != 2 || values[1] != "Accept-Encoding" {
		t.Fatalf("expected only Accept-Encoding to be appended, got %v", values)
	}
}

func TestProblemInstanceCarriesRequestID(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())
	router.MethodNotAllowed(MethodNotAllowedHandler())
	router.Use(chimiddleware.RequestID, applog.RequestLogger(), Recoverer())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {})
	router.Get("/panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/panic", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		req.Header.Set(chimiddleware.RequestIDHeader, "req-correlate-42")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != tt.status {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, resp.Code)
		}
		if problem := decodeProblem(t, resp); problem.Instance != "req-correlate-42" {
			t.Fatalf("%s %s: expected instance req-correlate-42, got %q", tt.method, tt.path, problem.Instance)
		}
	}
}

func TestProblemInstanceEmptyWithoutRequestLogger(t *testing.T) {
	resp := httptest.NewRecorder()
	newProbeRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if problem := decodeProblem(t, resp); problem.Instance != "" {
		t.Fatalf("expected no instance, got %q", problem.Instance)
	}
	if strings.Contains(resp.Body.String(), `"instance"`) {
		t.Fatalf("expected instance to be omitted, got %s", resp.Body.String())
	}
}

func TestProblemInstanceEscapesIdentifier(t *testing.T) {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler())
	router.Use(chimiddleware.RequestID, applog.RequestLogger())

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "id with space")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if problem := decodeProblem(t, resp); problem.Instance != "id%20with%20space" {
		t.Fatalf("expected escaped instance, got %q", problem.Instance)
	}
}
