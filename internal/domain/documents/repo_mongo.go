package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection and field names match the documents written by the earlier Node
// service. Its ObjectId _ids and Date-typed patientDob values are read through
// decodeID and decodeDate.
const (
	prescriptionsCollection = "prescriptions"
	consultationsCollection = "consultations"
	healthRecordsCollection = "healthrecords"
)

// MongoStore is the MongoDB Store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects, pings the primary and makes sure the listing
// indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("telemeds-server"))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string]string{
		prescriptionsCollection: "uploadDate",
		consultationsCollection: "submissionDate",
		healthRecordsCollection: "uploadDate",
	}
	for coll, field := range indexes {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}},
		})
		if err != nil {
			return fmt.Errorf("create index on %s.%s: %w", coll, field, err)
		}
	}
	return nil
}

func (s *MongoStore) Prescriptions() PrescriptionRepository {
	return &prescriptionRepoMongo{coll: s.db.Collection(prescriptionsCollection)}
}

func (s *MongoStore) Consultations() ConsultationRepository {
	return &consultationRepoMongo{coll: s.db.Collection(consultationsCollection)}
}

func (s *MongoStore) HealthRecords() HealthRecordRepository {
	return &healthRecordRepoMongo{coll: s.db.Collection(healthRecordsCollection)}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func newestFirst(dateField string) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: dateField, Value: -1}, {Key: "_id", Value: -1}})
}

// legacyIDSpace namespaces the ids derived from ObjectIds.
var legacyIDSpace = uuid.MustParse("6f1c2a9e-3b7d-4e58-9a41-0c5d8e2f7b13")

// decodeID accepts the uuid strings this service writes and ObjectIds from
// older documents. An ObjectId maps to a stable name-based uuid.
func decodeID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case string:
		return uuid.Parse(id)
	case primitive.ObjectID:
		return uuid.NewSHA1(legacyIDSpace, id[:]), nil
	default:
		return uuid.Nil, fmt.Errorf("unsupported _id type %T", v)
	}
}

// decodeDate returns a calendar date in DateLayout from either a stored
// string or a BSON date. Missing and null values decode to "".
func decodeDate(v any) (string, error) {
	switch d := v.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	case primitive.DateTime:
		return d.Time().UTC().Format(DateLayout), nil
	default:
		return "", fmt.Errorf("unsupported date type %T", v)
	}
}

// =========== Prescription Repository ===========

type prescriptionDoc struct {
	ID           any       `bson:"_id"`
	PatientName  string    `bson:"patientName"`
	PatientEmail string    `bson:"patientEmail"`
	FileName     string    `bson:"fileName"`
	FilePath     string    `bson:"filePath"`
	UploadDate   time.Time `bson:"uploadDate"`
	Status       string    `bson:"status"`
}

type prescriptionRepoMongo struct{ coll *mongo.Collection }

func (r *prescriptionRepoMongo) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := r.coll.InsertOne(ctx, prescriptionDoc{
		ID: p.ID.String(), PatientName: p.PatientName, PatientEmail: p.PatientEmail,
		FileName: p.FileName, FilePath: p.FilePath, UploadDate: p.UploadDate, Status: p.Status,
	})
	return err
}

func (r *prescriptionRepoMongo) List(ctx context.Context) ([]*Prescription, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, newestFirst("uploadDate"))
	if err != nil {
		return nil, err
	}
	var docs []prescriptionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	items := make([]*Prescription, 0, len(docs))
	for _, d := range docs {
		id, err := decodeID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("prescription %v: %w", d.ID, err)
		}
		items = append(items, &Prescription{
			ID: id, PatientName: d.PatientName, PatientEmail: d.PatientEmail,
			FileName: d.FileName, FilePath: d.FilePath, UploadDate: d.UploadDate, Status: d.Status,
		})
	}
	return items, nil
}

// =========== Consultation Repository ===========

type consultationDoc struct {
	ID               any       `bson:"_id"`
	PatientName      string    `bson:"patientName"`
	PatientAge       int       `bson:"patientAge"`
	PatientEmail     string    `bson:"patientEmail"`
	PatientGender    string    `bson:"patientGender"`
	PatientDOB       any       `bson:"patientDob"`
	PatientCondition string    `bson:"patientCondition"`
	SubmissionDate   time.Time `bson:"submissionDate"`
	Status           string    `bson:"status"`
}

type consultationRepoMongo struct{ coll *mongo.Collection }

func (r *consultationRepoMongo) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	_, err := r.coll.InsertOne(ctx, consultationDoc{
		ID: c.ID.String(), PatientName: c.PatientName, PatientAge: c.PatientAge,
		PatientEmail: c.PatientEmail, PatientGender: c.PatientGender, PatientDOB: c.PatientDOB,
		PatientCondition: c.PatientCondition, SubmissionDate: c.SubmissionDate, Status: c.Status,
	})
	return err
}

func (r *consultationRepoMongo) List(ctx context.Context) ([]*Consultation, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, newestFirst("submissionDate"))
	if err != nil {
		return nil, err
	}
	var docs []consultationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	items := make([]*Consultation, 0, len(docs))
	for _, d := range docs {
		id, err := decodeID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("consultation %v: %w", d.ID, err)
		}
		dob, err := decodeDate(d.PatientDOB)
		if err != nil {
			return nil, fmt.Errorf("consultation %v: %w", d.ID, err)
		}
		items = append(items, &Consultation{
			ID: id, PatientName: d.PatientName, PatientAge: d.PatientAge,
			PatientEmail: d.PatientEmail, PatientGender: d.PatientGender, PatientDOB: dob,
			PatientCondition: d.PatientCondition, SubmissionDate: d.SubmissionDate, Status: d.Status,
		})
	}
	return items, nil
}

// =========== HealthRecord Repository ===========

type healthRecordDoc struct {
	ID           any       `bson:"_id"`
	PatientEmail string    `bson:"patientEmail"`
	FileName     string    `bson:"fileName"`
	FilePath     string    `bson:"filePath"`
	FileType     string    `bson:"fileType"`
	FileSize     int64     `bson:"fileSize"`
	Category     string    `bson:"category"`
	UploadDate   time.Time `bson:"uploadDate"`
}

type healthRecordRepoMongo struct{ coll *mongo.Collection }

func (r *healthRecordRepoMongo) Create(ctx context.Context, h *HealthRecord) error {
	h.ID = uuid.New()
	_, err := r.coll.InsertOne(ctx, healthRecordDoc{
		ID: h.ID.String(), PatientEmail: h.PatientEmail, FileName: h.FileName, FilePath: h.FilePath,
		FileType: h.FileType, FileSize: h.FileSize, Category: h.Category, UploadDate: h.UploadDate,
	})
	return err
}

func (r *healthRecordRepoMongo) List(ctx context.Context) ([]*HealthRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, newestFirst("uploadDate"))
	if err != nil {
		return nil, err
	}
	var docs []healthRecordDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	items := make([]*HealthRecord, 0, len(docs))
	for _, d := range docs {
		id, err := decodeID(d.ID)
		if err != nil {
			return nil, fmt.Errorf("health record %v: %w", d.ID, err)
		}
		items = append(items, &HealthRecord{
			ID: id, PatientEmail: d.PatientEmail, FileName: d.FileName, FilePath: d.FilePath,
			FileType: d.FileType, FileSize: d.FileSize, Category: d.Category, UploadDate: d.UploadDate,
		})
	}
	return items, nil
}
