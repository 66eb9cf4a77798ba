package documents

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConsultationDoc_LegacyDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	raw, err := bson.Marshal(bson.M{
		"_id":              oid,
		"patientName":      "Ada",
		"patientAge":       34.0,
		"patientEmail":     "ada@example.com",
		"patientGender":    "female",
		"patientDob":       primitive.NewDateTimeFromTime(dob),
		"patientCondition": "cough",
		"submissionDate":   primitive.NewDateTimeFromTime(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		"status":           "pending",
		"__v":              0,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var d consultationDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal legacy document: %v", err)
	}
	id, err := decodeID(d.ID)
	if err != nil {
		t.Fatalf("decodeID: %v", err)
	}
	again, _ := decodeID(oid)
	if id != again || id == uuid.Nil {
		t.Errorf("expected a stable non-nil id, got %s and %s", id, again)
	}
	got, err := decodeDate(d.PatientDOB)
	if err != nil {
		t.Fatalf("decodeDate: %v", err)
	}
	if got != "1990-04-02" {
		t.Errorf("expected 1990-04-02, got %q", got)
	}
	if d.PatientAge != 34 {
		t.Errorf("expected age 34, got %d", d.PatientAge)
	}
}

func TestConsultationDoc_CurrentDocument(t *testing.T) {
	want := uuid.New()
	raw, err := bson.Marshal(consultationDoc{ID: want.String(), PatientDOB: "1988-12-10"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var d consultationDoc
	if err := bson.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id, err := decodeID(d.ID)
	if err != nil || id != want {
		t.Errorf("expected %s, got %s (err=%v)", want, id, err)
	}
	if dob, err := decodeDate(d.PatientDOB); err != nil || dob != "1988-12-10" {
		t.Errorf("expected 1988-12-10, got %q (err=%v)", dob, err)
	}
}

func TestDecodeHelpers_Unsupported(t *testing.T) {
	if _, err := decodeID(int32(7)); err == nil {
		t.Error("expected error for numeric _id")
	}
	if _, err := decodeID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed uuid string")
	}
	if dob, err := decodeDate(nil); err != nil || dob != "" {
		t.Errorf("expected empty date for missing field, got %q (err=%v)", dob, err)
	}
	if _, err := decodeDate(true); err == nil {
		t.Error("expected error for boolean date")
	}
}
