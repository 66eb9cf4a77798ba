package documents

import (
	"time"

	"github.com/google/uuid"
)

// Defaults applied at intake when the client omits a field.
const (
	DefaultPatientName  = "Unknown"
	DefaultPatientEmail = "unknown@example.com"
	DefaultCategory     = "general"
)

// Prescription statuses. Records are created pending; the other values are
// set by a reviewer workflow that lives outside this service.
const (
	PrescriptionPending  = "pending"
	PrescriptionVerified = "verified"
	PrescriptionRejected = "rejected"
)

// Consultation statuses.
const (
	ConsultationPending   = "pending"
	ConsultationScheduled = "scheduled"
	ConsultationCompleted = "completed"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Prescription maps to the prescriptions table.
type Prescription struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientName  string    `db:"patient_name" json:"patientName"`
	PatientEmail string    `db:"patient_email" json:"patientEmail"`
	FileName     string    `db:"file_name" json:"fileName"`
	FilePath     string    `db:"file_path" json:"filePath"`
	UploadDate   time.Time `db:"upload_date" json:"uploadDate"`
	Status       string    `db:"status" json:"status"`
}

// Consultation maps to the consultations table.
type Consultation struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientName      string    `db:"patient_name" json:"patientName"`
	PatientAge       int       `db:"patient_age" json:"patientAge"`
	PatientEmail     string    `db:"patient_email" json:"patientEmail"`
	PatientGender    string    `db:"patient_gender" json:"patientGender"`
	PatientDOB       string    `db:"patient_dob" json:"patientDob"`
	PatientCondition string    `db:"patient_condition" json:"patientCondition"`
	SubmissionDate   time.Time `db:"submission_date" json:"submissionDate"`
	Status           string    `db:"status" json:"status"`
}

// HealthRecord maps to the health_records table.
type HealthRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientEmail string    `db:"patient_email" json:"patientEmail"`
	FileName     string    `db:"file_name" json:"fileName"`
	FilePath     string    `db:"file_path" json:"filePath"`
	FileType     string    `db:"file_type" json:"fileType"`
	FileSize     int64     `db:"file_size" json:"fileSize"`
	Category     string    `db:"category" json:"category"`
	UploadDate   time.Time `db:"upload_date" json:"uploadDate"`
}

// ConsultationRequest is the client-supplied part of a Consultation.
type ConsultationRequest struct {
	PatientName      string `json:"patientName" validate:"required,max=200"`
	PatientAge       int    `json:"patientAge" validate:"required,gt=0,lte=150"`
	PatientEmail     string `json:"patientEmail" validate:"required,email,max=320"`
	PatientGender    string `json:"patientGender" validate:"required,max=32"`
	PatientDOB       string `json:"patientDob" validate:"required,datetime=2006-01-02"`
	PatientCondition string `json:"patientCondition" validate:"required,max=5000"`
}
