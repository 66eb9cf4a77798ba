package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemeds/telemeds/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGStore is the PostgreSQL Store. Tables come from the embedded
// migrations.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

func (s *PGStore) Prescriptions() PrescriptionRepository { return &prescriptionRepoPG{q: s.pool} }
func (s *PGStore) Consultations() ConsultationRepository { return &consultationRepoPG{q: s.pool} }
func (s *PGStore) HealthRecords() HealthRecordRepository { return &healthRecordRepoPG{q: s.pool} }
func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *PGStore) PoolStats() *db.PoolStats { return db.GetPoolStats(s.pool) }

func (s *PGStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ q queryable }

const prescriptionCols = `id, patient_name, patient_email, file_name, file_path, upload_date, status`

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.q.Exec(ctx, `
		INSERT INTO prescriptions (`+prescriptionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.PatientName, p.PatientEmail, p.FileName, p.FilePath, p.UploadDate, p.Status)
	return err
}

func (r *prescriptionRepoPG) List(ctx context.Context) ([]*Prescription, error) {
	rows, err := r.q.Query(ctx, `SELECT `+prescriptionCols+` FROM prescriptions ORDER BY upload_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Prescription{}
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientName, &p.PatientEmail, &p.FileName, &p.FilePath, &p.UploadDate, &p.Status); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

// =========== Consultation Repository ===========

type consultationRepoPG struct{ q queryable }

const consultationCols = `id, patient_name, patient_age, patient_email, patient_gender,
	patient_dob, patient_condition, submission_date, status`

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	dob, err := time.Parse(DateLayout, c.PatientDOB)
	if err != nil {
		return fmt.Errorf("parse patient dob: %w", err)
	}
	c.ID = uuid.New()
	_, err = r.q.Exec(ctx, `
		INSERT INTO consultations (`+consultationCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.PatientName, c.PatientAge, c.PatientEmail, c.PatientGender,
		dob, c.PatientCondition, c.SubmissionDate, c.Status)
	return err
}

func (r *consultationRepoPG) List(ctx context.Context) ([]*Consultation, error) {
	rows, err := r.q.Query(ctx, `SELECT `+consultationCols+` FROM consultations ORDER BY submission_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*Consultation{}
	for rows.Next() {
		var c Consultation
		var dob time.Time
		if err := rows.Scan(&c.ID, &c.PatientName, &c.PatientAge, &c.PatientEmail, &c.PatientGender,
			&dob, &c.PatientCondition, &c.SubmissionDate, &c.Status); err != nil {
			return nil, err
		}
		c.PatientDOB = dob.Format(DateLayout)
		items = append(items, &c)
	}
	return items, rows.Err()
}

// =========== HealthRecord Repository ===========

type healthRecordRepoPG struct{ q queryable }

const healthRecordCols = `id, patient_email, file_name, file_path, file_type, file_size, category, upload_date`

func (r *healthRecordRepoPG) Create(ctx context.Context, h *HealthRecord) error {
	h.ID = uuid.New()
	_, err := r.q.Exec(ctx, `
		INSERT INTO health_records (`+healthRecordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		h.ID, h.PatientEmail, h.FileName, h.FilePath, h.FileType, h.FileSize, h.Category, h.UploadDate)
	return err
}

func (r *healthRecordRepoPG) List(ctx context.Context) ([]*HealthRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+healthRecordCols+` FROM health_records ORDER BY upload_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*HealthRecord{}
	for rows.Next() {
		var h HealthRecord
		if err := rows.Scan(&h.ID, &h.PatientEmail, &h.FileName, &h.FilePath, &h.FileType, &h.FileSize, &h.Category, &h.UploadDate); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
