package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/telemeds/telemeds/pkg/apperror"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if GetRequestID(c) == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := GetRequestID(c); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesMalformed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error { return nil })(c)

	if got := rec.Header().Get(RequestIDHeader); got == "" || strings.Contains(got, " ") {
		t.Errorf("expected a generated id, got %q", got)
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/prescriptions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-1")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
	if entry["request_id"] != "rid-1" {
		t.Errorf("expected request_id rid-1, got %v", entry["request_id"])
	}
	if entry["path"] != "/api/prescriptions" {
		t.Errorf("expected path, got %v", entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
}

func TestLogger_RendersAndLogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/api/chatbot", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return apperror.Validation(apperror.CodeInvalidRequest, "Message is required")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("expected error to be handled, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level for 4xx, got %v", entry["level"])
	}
	if entry["status"] != float64(400) {
		t.Errorf("expected logged status 400, got %v", entry["status"])
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	err := Recovery(logger)(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Error("expected panic value to be logged")
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorHandler_Envelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   apperror.Kind
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        apperror.Validation(apperror.CodeNoFile, "No file uploaded"),
			wantStatus: http.StatusBadRequest,
			wantKind:   apperror.KindValidation,
			wantCode:   apperror.CodeNoFile,
			wantMsg:    "No file uploaded",
		},
		{
			name:       "persistence hides cause",
			err:        apperror.Persistence("Error uploading prescription", errors.New("pq: password authentication failed")),
			wantStatus: http.StatusInternalServerError,
			wantKind:   apperror.KindPersistence,
			wantCode:   apperror.CodeStorageUnavailable,
			wantMsg:    "Error uploading prescription",
		},
		{
			name:       "echo not found",
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantKind:   apperror.KindValidation,
			wantCode:   "not_found",
			wantMsg:    "Not Found",
		},
		{
			name:       "rate limited",
			err:        echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"),
			wantStatus: http.StatusTooManyRequests,
			wantKind:   apperror.KindResourceLimit,
			wantCode:   "too_many_requests",
			wantMsg:    "rate limit exceeded",
		},
		{
			name:       "unclassified",
			err:        errors.New("/var/lib/uploads: disk full"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   apperror.KindPersistence,
			wantCode:   "internal",
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body apperror.Body
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse body: %v", err)
			}
			if body.Kind != tt.wantKind || body.Code != tt.wantCode || body.Error != tt.wantMsg {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{method, route, status})
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	rec := &fakeRecorder{}
	e := echo.New()
	e.Use(Metrics(rec))
	e.GET("/api/prescriptions", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{})
	})
	e.POST("/api/chatbot", func(c echo.Context) error {
		return apperror.Validation(apperror.CodeInvalidRequest, "Message is required")
	})

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/prescriptions", nil),
		httptest.NewRequest(http.MethodPost, "/api/chatbot", nil),
	} {
		e.ServeHTTP(httptest.NewRecorder(), r)
	}

	if len(rec.seen) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(rec.seen))
	}
	if rec.seen[0] != (recordedRequest{http.MethodGet, "/api/prescriptions", http.StatusOK}) {
		t.Errorf("unexpected first record %+v", rec.seen[0])
	}
	if rec.seen[1] != (recordedRequest{http.MethodPost, "/api/chatbot", http.StatusBadRequest}) {
		t.Errorf("unexpected second record %+v", rec.seen[1])
	}
}
