package domain

import (
	"testing"
)

func TestJobStatusTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestNewJobDefaults(t *testing.T) {
	job := NewJob("1_100_42", 1, "john_doe", "")

	if job.Status != JobStatusPending {
		t.Errorf("new job status = %s, want pending", job.Status)
	}
	if job.Kind != MediaKindAuto {
		t.Errorf("empty kind should default to auto, got %s", job.Kind)
	}
	if job.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("lifecycle timestamps should start unset")
	}
}

func TestJobTransitions(t *testing.T) {
	job := NewJob("1_100_42", 1, "john_doe", MediaKindVideo)

	job.MarkProcessing()
	if job.Status != JobStatusProcessing || job.StartedAt == nil {
		t.Fatalf("processing transition incomplete: %+v", job)
	}

	job.MarkCompleted("/results/1_100_42")
	if job.Status != JobStatusCompleted || job.CompletedAt == nil || job.ResultPath == "" {
		t.Fatalf("completed transition incomplete: %+v", job)
	}

	failed := NewJob("1_100_43", 1, "john_doe", MediaKindVideo)
	failed.MarkFailed("no public media found")
	if failed.Status != JobStatusFailed || failed.Error == "" || failed.CompletedAt == nil {
		t.Fatalf("failed transition incomplete: %+v", failed)
	}
}
