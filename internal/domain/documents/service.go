package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/telemeds/telemeds/internal/platform/blobstore"
	"github.com/telemeds/telemeds/pkg/apperror"
)

// Multipart field names. They double as the storage key prefix.
const (
	PrescriptionField = "prescription"
	HealthRecordField = "healthRecord"
)

// Metric labels for intake kinds and outcomes.
const (
	kindPrescription = "prescription"
	kindHealthRecord = "health_record"

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Client-facing messages.
const (
	msgNoFile           = "No file uploaded"
	msgInvalidFileType  = "Only images and PDF files are allowed"
	msgFileTooLarge     = "File too large. Maximum size is 10MB."
	msgPrescriptionFail = "Failed to upload prescription"
	msgHealthRecordFail = "Failed to upload health record"
	msgConsultationFail = "Failed to submit consultation"
	msgListPrescription = "Failed to fetch prescriptions"
	msgListHealthRecord = "Failed to fetch health records"
	msgListConsultation = "Failed to fetch consultations"
)

// ErrFileTooLarge is returned for any upload over blobstore.MaxFileSize. The
// HTTP body limit on upload routes reports the same error.
var ErrFileTooLarge = apperror.ResourceLimit(apperror.CodeFileTooLarge, msgFileTooLarge)

// Recorder receives one observation per upload attempt.
type Recorder interface {
	RecordUpload(kind, outcome string, size int64)
}

type nopRecorder struct{}

func (nopRecorder) RecordUpload(string, string, int64) {}

// Upload is a single file part received from a client.
type Upload struct {
	FileName    string
	ContentType string
	// Size is the size declared by the client. The stored byte count is
	// enforced separately while writing.
	Size    int64
	Content io.Reader
}

// PrescriptionSubmission is the input of SubmitPrescription. Empty strings
// are replaced by the package defaults.
type PrescriptionSubmission struct {
	PatientName  string
	PatientEmail string
	File         *Upload
}

// HealthRecordSubmission is the input of SubmitHealthRecord.
type HealthRecordSubmission struct {
	PatientEmail string
	Category     string
	File         *Upload
}

type Service struct {
	store   Store
	blobs   blobstore.BlobStore
	namer   *blobstore.Namer
	metrics Recorder
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for upload and submission dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store Store, blobs blobstore.BlobStore, namer *blobstore.Namer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		blobs:   blobs,
		namer:   namer,
		metrics: nopRecorder{},
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "documents").Logger()
	return s
}

// -- Prescriptions --

// SubmitPrescription validates and stores the file, then records its
// metadata as a pending prescription. A rejected or failed submission leaves
// neither a record nor a stored file.
func (s *Service) SubmitPrescription(ctx context.Context, in PrescriptionSubmission) (p *Prescription, err error) {
	var size int64
	defer func() { s.record(kindPrescription, err, size) }()

	key, size, err := s.storeFile(ctx, PrescriptionField, in.File, msgPrescriptionFail)
	if err != nil {
		return nil, err
	}

	p = &Prescription{
		PatientName:  orDefault(in.PatientName, DefaultPatientName),
		PatientEmail: orDefault(in.PatientEmail, DefaultPatientEmail),
		FileName:     in.File.FileName,
		FilePath:     key,
		UploadDate:   s.now().UTC(),
		Status:       PrescriptionPending,
	}
	if err := s.store.Prescriptions().Create(ctx, p); err != nil {
		s.discard(ctx, key, err)
		return nil, apperror.Persistence(msgPrescriptionFail, err)
	}
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context) ([]*Prescription, error) {
	items, err := s.store.Prescriptions().List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list prescriptions")
		return nil, apperror.Persistence(msgListPrescription, err)
	}
	if items == nil {
		items = []*Prescription{}
	}
	return items, nil
}

// -- Health records --

// SubmitHealthRecord stores the file and records its validated content type
// and stored size.
func (s *Service) SubmitHealthRecord(ctx context.Context, in HealthRecordSubmission) (r *HealthRecord, err error) {
	var size int64
	defer func() { s.record(kindHealthRecord, err, size) }()

	key, size, err := s.storeFile(ctx, HealthRecordField, in.File, msgHealthRecordFail)
	if err != nil {
		return nil, err
	}

	r = &HealthRecord{
		PatientEmail: orDefault(in.PatientEmail, DefaultPatientEmail),
		FileName:     in.File.FileName,
		FilePath:     key,
		FileType:     mediaType(in.File.ContentType),
		FileSize:     size,
		Category:     orDefault(in.Category, DefaultCategory),
		UploadDate:   s.now().UTC(),
	}
	if err := s.store.HealthRecords().Create(ctx, r); err != nil {
		s.discard(ctx, key, err)
		return nil, apperror.Persistence(msgHealthRecordFail, err)
	}
	return r, nil
}

func (s *Service) ListHealthRecords(ctx context.Context) ([]*HealthRecord, error) {
	items, err := s.store.HealthRecords().List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list health records")
		return nil, apperror.Persistence(msgListHealthRecord, err)
	}
	if items == nil {
		items = []*HealthRecord{}
	}
	return items, nil
}

// -- Consultations --

// CreateConsultation validates the request and records it as pending.
func (s *Service) CreateConsultation(ctx context.Context, req ConsultationRequest) (*Consultation, error) {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientEmail = strings.TrimSpace(req.PatientEmail)
	req.PatientGender = strings.TrimSpace(req.PatientGender)
	req.PatientDOB = strings.TrimSpace(req.PatientDOB)
	req.PatientCondition = strings.TrimSpace(req.PatientCondition)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	c := &Consultation{
		PatientName:      req.PatientName,
		PatientAge:       req.PatientAge,
		PatientEmail:     req.PatientEmail,
		PatientGender:    req.PatientGender,
		PatientDOB:       req.PatientDOB,
		PatientCondition: req.PatientCondition,
		SubmissionDate:   s.now().UTC(),
		Status:           ConsultationPending,
	}
	if err := s.store.Consultations().Create(ctx, c); err != nil {
		s.logger.Error().Err(err).Msg("create consultation")
		return nil, apperror.Persistence(msgConsultationFail, err)
	}
	return c, nil
}

func (s *Service) ListConsultations(ctx context.Context) ([]*Consultation, error) {
	items, err := s.store.Consultations().List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list consultations")
		return nil, apperror.Persistence(msgListConsultation, err)
	}
	if items == nil {
		items = []*Consultation{}
	}
	return items, nil
}

// Ping checks the metadata store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// -- helpers --

// storeFile gates the upload and writes it durably under a fresh key. Size
// is checked before type so an oversized file never reaches the validator.
func (s *Service) storeFile(ctx context.Context, field string, f *Upload, failMsg string) (string, int64, error) {
	if f == nil || f.Content == nil {
		return "", 0, apperror.Validation(apperror.CodeNoFile, msgNoFile)
	}
	if f.Size > blobstore.MaxFileSize {
		return "", 0, ErrFileTooLarge
	}
	if err := blobstore.ValidateFile(f.FileName, f.ContentType); err != nil {
		if errors.Is(err, blobstore.ErrMissingFileName) {
			return "", 0, apperror.Validation(apperror.CodeNoFile, msgNoFile)
		}
		return "", 0, apperror.Validation(apperror.CodeInvalidFileType, msgInvalidFileType)
	}

	key := s.namer.Name(field, f.FileName)
	n, err := s.blobs.Put(ctx, key, f.Content)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) {
			return "", 0, ErrFileTooLarge
		}
		s.logger.Error().Err(err).Str("field", field).Msg("store upload")
		return "", 0, apperror.Persistence(failMsg, err)
	}
	return key, n, nil
}

// discard removes a stored binary whose metadata insert failed. The request
// context may already be cancelled, so the removal runs without it.
func (s *Service) discard(ctx context.Context, key string, cause error) {
	ev := s.logger.Error().Err(cause).Str("file_path", key)
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		ev.AnErr("cleanup_error", err).Msg("record insert failed and orphaned upload was not removed")
		return
	}
	ev.Msg("record insert failed, upload removed")
}

func (s *Service) record(kind string, err error, size int64) {
	outcome := outcomeAccepted
	switch {
	case err == nil:
	case apperror.IsKind(err, apperror.KindValidation), apperror.IsKind(err, apperror.KindResourceLimit):
		outcome = outcomeRejected
	default:
		outcome = outcomeFailed
	}
	s.metrics.RecordUpload(kind, outcome, size)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// mediaType strips parameters and lower-cases a validated content type.
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// -- request validation --

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so messages match what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateRequest(req ConsultationRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.Validation(apperror.CodeInvalidRequest, "Invalid consultation request")
	}
	return apperror.Validation(apperror.CodeInvalidRequest, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
