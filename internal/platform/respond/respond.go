// Package respond renders RFC 9457 problem details for requests that never
// reach a huma operation: routing misses and recovered panics.
package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/probe-responder/internal/platform/logging"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"

	msgNotFound         = "resource not found"
	msgInternalServer   = "internal server error"
	msgMethodNotAllowed = "method %s not allowed"
)

// NotFoundHandler emits a problem-details 404 response.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, msgNotFound)
	}
}

// MethodNotAllowedHandler emits a problem-details 405 response with an Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		writeProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf(msgMethodNotAllowed, r.Method))
	}
}

// Recoverer converts panics into problem-details 500 responses. When the
// handler already started the response only a log entry is written.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				applog.LogError(r.Context(), "panic recovered", fmt.Errorf("%v", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				if rw.wroteHeader {
					return
				}
				writeProblem(rw, r, http.StatusInternalServerError, msgInternalServer)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// writeProblem negotiates JSON or CBOR from the Accept header and writes the body.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := &huma.ErrorModel{
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: problemInstance(r),
	}

	useCBOR := selectFormat(r.Header.Get("Accept"))
	var (
		body        []byte
		err         error
		contentType = contentTypeProblemJSON
	)
	if useCBOR {
		contentType = contentTypeProblemCBOR
		body, err = cbor.Marshal(problem)
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err = enc.Encode(problem)
		body = buf.Bytes()
	}
	if err != nil {
		applog.LogError(r.Context(), "failed to encode problem", err, zap.Int("status", status))
		http.Error(w, http.StatusText(status), status)
		return
	}

	logProblem(r, status, detail)

	h := w.Header()
	ensureVary(h, "Accept")
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		applog.LogError(r.Context(), "failed to write problem", err, zap.Int("status", status))
	}
}

// problemInstance identifies the failed request by its trace or request ID
// as a relative URI reference. Empty when RequestLogger did not run.
func problemInstance(r *http.Request) string {
	id := applog.TraceIDFromContext(r.Context())
	if id == "" {
		return ""
	}
	return (&url.URL{Path: id}).String()
}

func logProblem(r *http.Request, status int, detail string) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if status >= http.StatusInternalServerError {
		applog.LogError(r.Context(), detail, nil, fields...)
		return
	}
	applog.LogWarn(r.Context(), detail, fields...)
}

// allowedMethods inspects chi's routing tree for the methods the path supports.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	routePath := rctx.RoutePath
	if routePath == "" {
		routePath = r.URL.RawPath
		if routePath == "" {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}

	candidates := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowed := make([]string, 0, len(candidates))
	for _, method := range candidates {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// ensureVary appends values to Vary unless already listed.
func ensureVary(h http.Header, values ...string) {
	present := make(map[string]struct{})
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				present[strings.ToLower(p)] = struct{}{}
			}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		h.Add("Vary", v)
	}
}

// responseWriter remembers whether the status line has gone out.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
