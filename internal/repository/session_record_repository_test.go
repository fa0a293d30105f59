package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"school_exam_client/internal/model"
	"school_exam_client/pkg/database"
)

func newTestRepo(t *testing.T) *SessionRecordRepository {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return NewSessionRecordRepository(db)
}

func TestSaveAndFindRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	start := time.Now()

	rec := &model.SessionRecord{
		Namespace:       "exam_session:dev-school:1",
		QuestionSetID:   "math-final",
		AttemptID:       "att-1",
		StartedAtMs:     start.UnixMilli(),
		DurationSeconds: 1800,
	}
	if err := repo.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Find(rec.Namespace, rec.QuestionSetID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.AttemptID != "att-1" || got.DurationSeconds != 1800 || got.StartedAtMs != start.UnixMilli() {
		t.Fatalf("Find returned %+v; want saved record", got)
	}
	// now == startTimestamp 时必须仍然有效
	if got.ExpiredAt(time.UnixMilli(got.StartedAtMs)) {
		t.Fatal("record must be valid at its own start timestamp")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	repo := newTestRepo(t)

	first := &model.SessionRecord{
		Namespace:       "ns",
		QuestionSetID:   "set-1",
		AttemptID:       "att-old",
		StartedAtMs:     1000,
		DurationSeconds: 600,
	}
	if err := repo.Save(first); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	second := &model.SessionRecord{
		Namespace:       "ns",
		QuestionSetID:   "set-1",
		AttemptID:       "att-new",
		StartedAtMs:     2000,
		DurationSeconds: 900,
	}
	if err := repo.Save(second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	recs, err := repo.LoadAll("ns")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("LoadAll returned %d records; want 1 (overwrite, not append)", len(recs))
	}
	if recs[0].AttemptID != "att-new" || recs[0].StartedAtMs != 2000 {
		t.Fatalf("record after overwrite = %+v; want att-new/2000", recs[0])
	}
}

func TestLoadAllFiltersNamespace(t *testing.T) {
	repo := newTestRepo(t)

	for _, r := range []*model.SessionRecord{
		{Namespace: "ns-a", QuestionSetID: "s1", AttemptID: "a1", StartedAtMs: 1, DurationSeconds: 60},
		{Namespace: "ns-a", QuestionSetID: "s2", AttemptID: "a2", StartedAtMs: 1, DurationSeconds: 60},
		{Namespace: "ns-b", QuestionSetID: "s3", AttemptID: "a3", StartedAtMs: 1, DurationSeconds: 60},
	} {
		if err := repo.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recs, err := repo.LoadAll("ns-a")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("LoadAll(ns-a) returned %d records; want 2", len(recs))
	}
	for _, r := range recs {
		if r.Namespace != "ns-a" {
			t.Errorf("record %q leaked from namespace %q", r.QuestionSetID, r.Namespace)
		}
	}
}

func TestDeleteIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	rec := &model.SessionRecord{
		Namespace:       "ns",
		QuestionSetID:   "set-1",
		AttemptID:       "att-1",
		StartedAtMs:     1000,
		DurationSeconds: 600,
	}
	if err := repo.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := repo.Delete("ns", "set-1"); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	// 第二次删除同样不报错
	if err := repo.Delete("ns", "set-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	if _, err := repo.Find("ns", "set-1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Find after delete: err = %v; want gorm.ErrRecordNotFound", err)
	}
}
