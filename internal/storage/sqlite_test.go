package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string) JobRecord {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return JobRecord{
		ID:          id,
		PhoneNumber: "+15551234567",
		CallbackURL: "https://example.com/hook",
		Status:      "pending",
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	rec := testRecord("job-1")

	if err := s.UpsertJob(rec); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.PhoneNumber != rec.PhoneNumber || got.Status != "pending" {
		t.Errorf("GetJob = %+v, want %+v", got, rec)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
	}
}

func TestStore_UpsertUpdatesSnapshot(t *testing.T) {
	s := openTestStore(t)
	rec := testRecord("job-2")
	if err := s.UpsertJob(rec); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	rec.Status = "completed"
	rec.ContextResult = "IVR menu map"
	rec.LegsJSON = `[{"legNumber":1}]`
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	if err := s.UpsertJob(rec); err != nil {
		t.Fatalf("UpsertJob update: %v", err)
	}

	got, err := s.GetJob("job-2")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" || got.ContextResult != "IVR menu map" {
		t.Errorf("snapshot not updated: %+v", got)
	}
}

func TestStore_GetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetJob("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListJobsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-a", "job-b", "job-c"} {
		rec := testRecord(id)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.UpsertJob(rec); err != nil {
			t.Fatalf("UpsertJob(%s): %v", id, err)
		}
	}

	got, err := s.ListJobs(2, 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListJobs returned %d records, want 2", len(got))
	}
	if got[0].ID != "job-c" || got[1].ID != "job-b" {
		t.Errorf("ListJobs order = [%s, %s], want [job-c, job-b]", got[0].ID, got[1].ID)
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)

	stale := testRecord("job-stale")
	stale.ExpiresAt = now.Add(-time.Hour)
	fresh := testRecord("job-fresh")
	fresh.ExpiresAt = now.Add(time.Hour)
	for _, rec := range []JobRecord{stale, fresh} {
		if err := s.UpsertJob(rec); err != nil {
			t.Fatalf("UpsertJob(%s): %v", rec.ID, err)
		}
	}

	deleted, err := s.DeleteExpired(now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired = %d, want 1", deleted)
	}

	if _, err := s.GetJob("job-stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired job still present, err = %v", err)
	}
	if _, err := s.GetJob("job-fresh"); err != nil {
		t.Errorf("fresh job missing: %v", err)
	}
}
