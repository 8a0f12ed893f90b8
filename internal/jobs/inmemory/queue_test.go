package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cardspark/spendmatch/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.IngestStatementJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last state: %+v", jobID, want, job)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(8, 2, store)
	defer q.Close()

	var handled atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		handled.Add(1)
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := &jobs.IngestStatementJob{
		UserID:     "user-1",
		DocumentID: "doc-1",
		BatchID:    "batch-1",
		GCSURI:     "gs://b/statements/user-1/doc-1.txt",
	}
	if err := q.PublishIngestStatement(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job ID")
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if handled.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", handled.Load())
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatal("timestamps not set on completion")
	}
}

func TestQueuePermanentErrorSkipsRetry(t *testing.T) {
	store := NewStore()
	q := NewQueue(8, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		attempts.Add(1)
		return jobs.Permanent(errors.New("document appears to be scanned"))
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := &jobs.IngestStatementJob{UserID: "user-1", DocumentID: "doc-1"}
	if err := q.PublishIngestStatement(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if attempts.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", attempts.Load())
	}
	if failed.Error == "" {
		t.Fatal("failed job has no error message")
	}
	if failed.RetryCount != 0 {
		t.Fatalf("permanent failure retried %d times", failed.RetryCount)
	}
}

func TestQueueRetriesTransientError(t *testing.T) {
	store := NewStore()
	q := NewQueue(8, 1, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if attempts.Add(1) == 1 {
			return fmt.Errorf("model call: transient")
		}
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("start: %v", err)
	}

	job := &jobs.IngestStatementJob{UserID: "user-1", DocumentID: "doc-1"}
	if err := q.PublishIngestStatement(context.Background(), job); err != nil {
		t.Fatalf("publish: %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if attempts.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", attempts.Load())
	}
	if done.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", done.RetryCount)
	}
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	seed := []*jobs.IngestStatementJob{
		{JobID: "j1", UserID: "user-1", DocumentID: "doc-1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "j2", UserID: "user-1", DocumentID: "doc-2", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Second)},
		{JobID: "j3", UserID: "user-2", DocumentID: "doc-3", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("save %s: %v", j.JobID, err)
		}
	}

	byUser, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("user-1 jobs = %d, want 2", len(byUser))
	}
	if byUser[0].JobID != "j2" {
		t.Fatalf("expected newest first, got %s", byUser[0].JobID)
	}

	failed, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "user-1", Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(failed) != 1 || failed[0].JobID != "j2" {
		t.Fatalf("failed filter returned %+v", failed)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 || limited[0].JobID != "j2" {
		t.Fatalf("pagination returned %+v", limited)
	}
}
