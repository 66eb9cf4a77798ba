package documents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/telemeds/telemeds/internal/platform/middleware"
	"github.com/telemeds/telemeds/pkg/apperror"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo, *testEnv) {
	env := newTestService(t)
	return NewHandler(env.svc), echo.New(), env
}

type filePart struct {
	field, name, contentType string
	content                  []byte
}

func multipartRequest(t *testing.T, file *filePart, values map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write(file.content)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

// -- Upload Handler Tests --

func TestHandler_UploadPrescription(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := multipartRequest(t,
		&filePart{PrescriptionField, "rx.jpg", "image/jpeg", []byte("jpeg-bytes")},
		map[string]string{"patientName": "Sam", "patientEmail": "sam@example.com"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.UploadPrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "Prescription uploaded successfully" {
		t.Errorf("unexpected message %v", body["message"])
	}
	if body["fileName"] != "rx.jpg" {
		t.Errorf("expected fileName rx.jpg, got %v", body["fileName"])
	}
	if id, _ := body["prescriptionId"].(string); id == "" {
		t.Error("expected prescriptionId in response")
	}
	if _, ok := body["filePath"]; ok {
		t.Error("expected storage key to stay out of the intake response")
	}

	items, _ := h.svc.ListPrescriptions(c.Request().Context())
	if len(items) != 1 || items[0].PatientName != "Sam" {
		t.Errorf("expected stored prescription for Sam, got %v", items)
	}
}

func TestHandler_UploadPrescription_NoFile(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := multipartRequest(t, nil, map[string]string{"patientName": "Sam"})
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.UploadPrescription(c)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, body := apperror.ToBody(err); body.Code != apperror.CodeNoFile || body.Error != "No file uploaded" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHandler_UploadPrescription_NotMultipart(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	_, body := apperror.ToBody(h.UploadPrescription(c))
	if body.Code != apperror.CodeNoFile {
		t.Errorf("expected no_file, got %+v", body)
	}
}

func TestHandler_UploadHealthRecord_InvalidType(t *testing.T) {
	h, e, env := newTestHandler(t)
	req := multipartRequest(t,
		&filePart{HealthRecordField, "notes.txt", "text/plain", []byte("hello")}, nil)
	c := e.NewContext(req, httptest.NewRecorder())

	status, body := apperror.ToBody(h.UploadHealthRecord(c))
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if body.Code != apperror.CodeInvalidFileType || body.Error != "Only images and PDF files are allowed" {
		t.Errorf("unexpected body %+v", body)
	}
	if files := env.storedFiles(t); len(files) != 0 {
		t.Errorf("expected no stored files, got %v", files)
	}
}

func TestHandler_UploadHealthRecord(t *testing.T) {
	h, e, _ := newTestHandler(t)
	req := multipartRequest(t,
		&filePart{HealthRecordField, "xray.gif", "image/gif", []byte("GIF89a")},
		map[string]string{"patientEmail": "p@example.com", "category": "imaging"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.UploadHealthRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"recordId"`) {
		t.Errorf("expected recordId in body, got %s", rec.Body.String())
	}

	items, _ := h.svc.ListHealthRecords(c.Request().Context())
	if len(items) != 1 {
		t.Fatalf("expected 1 health record, got %d", len(items))
	}
	if items[0].Category != "imaging" || items[0].FileType != "image/gif" || items[0].FileSize != 6 {
		t.Errorf("unexpected record %+v", items[0])
	}
}

func TestHandler_UploadBodyLimit(t *testing.T) {
	h, e, env := newTestHandler(t)
	limited := middleware.BodyLimit("1K", ErrFileTooLarge)(h.UploadHealthRecord)

	// Declared length over the limit.
	req := multipartRequest(t, &filePart{HealthRecordField, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096)}, nil)
	err := limited(e.NewContext(req, httptest.NewRecorder()))
	if apperror.KindOf(err) != apperror.KindResourceLimit {
		t.Errorf("expected resource_limit for declared length, got %v", err)
	}

	// Unknown length, limit hit while parsing the form.
	req = multipartRequest(t, &filePart{HealthRecordField, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 4096)}, nil)
	req.ContentLength = -1
	err = limited(e.NewContext(req, httptest.NewRecorder()))
	if apperror.KindOf(err) != apperror.KindResourceLimit {
		t.Errorf("expected resource_limit for streamed body, got %v", err)
	}

	if files := env.storedFiles(t); len(files) != 0 {
		t.Errorf("expected no stored files, got %v", files)
	}
}

// -- Consultation Handler Tests --

func TestHandler_CreateConsultation(t *testing.T) {
	h, e, _ := newTestHandler(t)
	body := `{"patientName":"Ada","patientAge":36,"patientEmail":"ada@example.com",` +
		`"patientGender":"female","patientDob":"1988-12-10","patientCondition":"cough"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateConsultation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"consultationId"`) {
		t.Errorf("expected consultationId in body, got %s", rec.Body.String())
	}
}

func TestHandler_CreateConsultation_BadRequest(t *testing.T) {
	h, e, _ := newTestHandler(t)
	for _, body := range []string{`{`, `{"patientAge":"old"}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		if err := h.CreateConsultation(c); apperror.KindOf(err) != apperror.KindValidation {
			t.Errorf("body %s: expected validation error, got %v", body, err)
		}
	}
}

// -- Retrieval Handler Tests --

func TestHandler_ListEmptyReturnsArray(t *testing.T) {
	h, e, _ := newTestHandler(t)
	for name, fn := range map[string]echo.HandlerFunc{
		"prescriptions":  h.ListPrescriptions,
		"health-records": h.ListHealthRecords,
		"consultations":  h.ListConsultations,
	} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := fn(c); err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("%s: expected [], got %s", name, got)
		}
	}
}

func TestHandler_ListStoreDown(t *testing.T) {
	env := newTestEnv(t, brokenStore{})
	h := NewHandler(env.svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	status, body := apperror.ToBody(h.ListConsultations(c))
	if status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if body.Error != "Failed to fetch consultations" {
		t.Errorf("unexpected message %q", body.Error)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e, _ := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"POST /api/upload-prescription":  false,
		"POST /api/upload-health-record": false,
		"POST /api/consultations":        false,
		"GET /api/prescriptions":         false,
		"GET /api/health-records":        false,
		"GET /api/consultations":         false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
