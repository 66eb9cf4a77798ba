package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo keeps records in insertion order. Stored values are copies so
// callers cannot mutate a record after Create.
type memoryRepo[T any] struct {
	mu      sync.RWMutex
	items   []T
	setID   func(*T, uuid.UUID)
	created func(*T) time.Time
}

func (r *memoryRepo[T]) Create(ctx context.Context, item *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.setID(item, uuid.New())

	r.mu.Lock()
	r.items = append(r.items, *item)
	r.mu.Unlock()
	return nil
}

// List returns newest first. Records sharing a timestamp come out in reverse
// insertion order.
func (r *memoryRepo[T]) List(ctx context.Context) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*T, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		item := r.items[i]
		out = append(out, &item)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return r.created(out[i]).After(r.created(out[j]))
	})
	return out, nil
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	prescriptions *memoryRepo[Prescription]
	consultations *memoryRepo[Consultation]
	records       *memoryRepo[HealthRecord]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prescriptions: &memoryRepo[Prescription]{
			setID:   func(p *Prescription, id uuid.UUID) { p.ID = id },
			created: func(p *Prescription) time.Time { return p.UploadDate },
		},
		consultations: &memoryRepo[Consultation]{
			setID:   func(c *Consultation, id uuid.UUID) { c.ID = id },
			created: func(c *Consultation) time.Time { return c.SubmissionDate },
		},
		records: &memoryRepo[HealthRecord]{
			setID:   func(r *HealthRecord, id uuid.UUID) { r.ID = id },
			created: func(r *HealthRecord) time.Time { return r.UploadDate },
		},
	}
}

func (s *MemoryStore) Prescriptions() PrescriptionRepository { return s.prescriptions }
func (s *MemoryStore) Consultations() ConsultationRepository { return s.consultations }
func (s *MemoryStore) HealthRecords() HealthRecordRepository { return s.records }
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *MemoryStore) Close(context.Context) error { return nil }
