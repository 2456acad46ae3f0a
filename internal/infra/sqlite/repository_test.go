package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleJob(id string, requesterID int64) *domain.Job {
	return domain.NewJob(id, requesterID, "john_doe", domain.MediaKindAuto)
}

func TestRecordAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := sampleJob("1_100_42", 1)
	if err := repo.Record(ctx, job); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("job not found after insert")
	}
	if got.ID != job.ID || got.RequesterID != 1 || got.Status != domain.JobStatusPending {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestRecordUpsertsTransitions(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := sampleJob("1_100_42", 1)
	repo.Record(ctx, job)

	job.MarkProcessing()
	repo.Record(ctx, job)

	job.MarkCompleted("/results/1_100_42")
	if err := repo.Record(ctx, job); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.ResultPath != "/results/1_100_42" {
		t.Fatalf("result path not persisted: %q", got.ResultPath)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("lifecycle timestamps not persisted")
	}
}

func TestRecordFailedJob(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := sampleJob("1_100_43", 1)
	job.MarkFailed("story page fetch: unexpected status 404")
	repo.Record(ctx, job)

	got, _ := repo.GetByID(ctx, job.ID)
	if got.Status != domain.JobStatusFailed || got.Error == "" {
		t.Fatalf("failure not persisted: %+v", got)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := testRepo(t)

	got, err := repo.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown id, got %+v", got)
	}
}

func TestListForRequester(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	a := sampleJob("1_100_1", 7)
	a.CreatedAt = time.Now().Add(-2 * time.Minute).UTC()
	b := sampleJob("1_100_2", 7)
	b.CreatedAt = time.Now().Add(-1 * time.Minute).UTC()
	other := sampleJob("2_100_1", 8)

	repo.Record(ctx, b)
	repo.Record(ctx, a)
	repo.Record(ctx, other)

	jobs, err := repo.ListForRequester(ctx, 7)
	if err != nil {
		t.Fatalf("ListForRequester failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != a.ID || jobs[1].ID != b.ID {
		t.Fatalf("jobs out of creation order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestCountByStatus(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	done := sampleJob("1_100_1", 1)
	done.MarkCompleted("/r")
	repo.Record(ctx, done)
	repo.Record(ctx, sampleJob("1_100_2", 1))
	repo.Record(ctx, sampleJob("1_100_3", 2))

	n, err := repo.CountByStatus(ctx, domain.JobStatusPending)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", n)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	old := sampleJob("1_100_1", 1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour).UTC()
	fresh := sampleJob("1_100_2", 1)

	repo.Record(ctx, old)
	repo.Record(ctx, fresh)

	deleted, err := repo.DeleteOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}

	if got, _ := repo.GetByID(ctx, fresh.ID); got == nil {
		t.Fatal("fresh job should survive cleanup")
	}
}
