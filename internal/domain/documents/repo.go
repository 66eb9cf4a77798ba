package documents

import (
	"context"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	// List returns every prescription, newest upload first.
	List(ctx context.Context) ([]*Prescription, error)
}

type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	// List returns every consultation, newest submission first.
	List(ctx context.Context) ([]*Consultation, error)
}

type HealthRecordRepository interface {
	Create(ctx context.Context, r *HealthRecord) error
	// List returns every health record, newest upload first.
	List(ctx context.Context) ([]*HealthRecord, error)
}

// Store groups the three repositories over one backend.
type Store interface {
	Prescriptions() PrescriptionRepository
	Consultations() ConsultationRepository
	HealthRecords() HealthRecordRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
