package documents

import (
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemeds/telemeds/internal/platform/middleware"
	"github.com/telemeds/telemeds/pkg/apperror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the intake and retrieval routes on api. uploadMW is
// applied to the two upload routes only, typically a body limit.
func (h *Handler) RegisterRoutes(api *echo.Group, uploadMW ...echo.MiddlewareFunc) {
	api.POST("/upload-prescription", h.UploadPrescription, uploadMW...)
	api.POST("/upload-health-record", h.UploadHealthRecord, uploadMW...)
	api.POST("/consultations", h.CreateConsultation)

	api.GET("/prescriptions", h.ListPrescriptions)
	api.GET("/health-records", h.ListHealthRecords)
	api.GET("/consultations", h.ListConsultations)
}

// -- Intake Handlers --

func (h *Handler) UploadPrescription(c echo.Context) error {
	file, closeFn, err := formUpload(c, PrescriptionField, msgPrescriptionFail)
	if err != nil {
		return err
	}
	defer closeFn()

	p, err := h.svc.SubmitPrescription(c.Request().Context(), PrescriptionSubmission{
		PatientName:  c.FormValue("patientName"),
		PatientEmail: c.FormValue("patientEmail"),
		File:         file,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":        "Prescription uploaded successfully",
		"prescriptionId": p.ID,
		"fileName":       p.FileName,
	})
}

func (h *Handler) UploadHealthRecord(c echo.Context) error {
	file, closeFn, err := formUpload(c, HealthRecordField, msgHealthRecordFail)
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := h.svc.SubmitHealthRecord(c.Request().Context(), HealthRecordSubmission{
		PatientEmail: c.FormValue("patientEmail"),
		Category:     c.FormValue("category"),
		File:         file,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Health record uploaded successfully",
		"recordId": r.ID,
		"fileName": r.FileName,
	})
}

func (h *Handler) CreateConsultation(c echo.Context) error {
	var req ConsultationRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation(apperror.CodeInvalidRequest, "Invalid consultation request")
	}
	consultation, err := h.svc.CreateConsultation(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":        "Consultation submitted successfully",
		"consultationId": consultation.ID,
	})
}

// -- Retrieval Handlers --

func (h *Handler) ListPrescriptions(c echo.Context) error {
	items, err := h.svc.ListPrescriptions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListHealthRecords(c echo.Context) error {
	items, err := h.svc.ListHealthRecords(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListConsultations(c echo.Context) error {
	items, err := h.svc.ListConsultations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// formUpload opens the named file part. A missing part, or a body that is not
// multipart at all, yields a nil Upload so the service reports no_file.
func formUpload(c echo.Context, field, failMsg string) (*Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if middleware.BodyLimitExceeded(c) {
			return nil, nil, ErrFileTooLarge
		}
		return nil, func() {}, nil
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperror.Persistence(failMsg, err)
	}
	return newUpload(fh, f), func() { _ = f.Close() }, nil
}

func newUpload(fh *multipart.FileHeader, f multipart.File) *Upload {
	return &Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	}
}
