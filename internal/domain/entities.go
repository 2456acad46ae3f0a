// Package domain contains the core business entities and types.
package domain

import (
	"errors"
	"time"
)

// JobStatus represents the current state of a download job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// MediaKind identifies the type of a downloadable item.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
	// MediaKindAuto lets the pipeline infer the kind from the resolved media.
	MediaKindAuto MediaKind = "auto"
)

// ErrInvalidDescriptor is returned for descriptors that violate the contract
// (empty or malformed URL).
var ErrInvalidDescriptor = errors.New("invalid media descriptor")

// Job represents one requested unit of download work. A Job is owned
// exclusively by the scheduler; callers only ever see value copies.
type Job struct {
	ID          string     `json:"job_id"`
	RequesterID int64      `json:"requester_id"`
	Target      string     `json:"target"`
	Kind        MediaKind  `json:"kind"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ResultPath  string     `json:"result_path,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewJob creates a pending Job for the given requester and target.
func NewJob(id string, requesterID int64, target string, kind MediaKind) *Job {
	if kind == "" {
		kind = MediaKindAuto
	}
	return &Job{
		ID:          id,
		RequesterID: requesterID,
		Target:      target,
		Kind:        kind,
		Status:      JobStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkProcessing transitions the job to processing and records the start time.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	now := time.Now().UTC()
	j.StartedAt = &now
}

// MarkCompleted transitions the job to its completed terminal state.
func (j *Job) MarkCompleted(resultPath string) {
	j.Status = JobStatusCompleted
	j.ResultPath = resultPath
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to its failed terminal state.
func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.Error = errMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MediaMetadata carries optional descriptor metadata surfaced by scraping.
type MediaMetadata struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	SourceID  string `json:"source_id,omitempty"`
}

// MediaDescriptor is one resolved, downloadable unit.
type MediaDescriptor struct {
	URL      string         `json:"url"`
	Kind     MediaKind      `json:"kind"`
	Metadata *MediaMetadata `json:"metadata,omitempty"`
}

// TransferResult is the outcome of downloading one MediaDescriptor.
// When Succeeded is true the file at LocalPath exists, is non-empty and is
// within the configured size ceiling; ownership transfers to the caller.
type TransferResult struct {
	LocalPath string `json:"local_path,omitempty"`
	ByteSize  int64  `json:"byte_size"`
	Succeeded bool   `json:"succeeded"`
}

// SubmitRequest is the payload for submitting a download job.
type SubmitRequest struct {
	RequesterID int64  `json:"requester_id"`
	Target      string `json:"target"`
	Kind        string `json:"kind,omitempty"`
}

// SubmitResponse is returned after a job has been accepted.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// QuotaResponse reports a requester's rate-limit usage.
type QuotaResponse struct {
	RequesterID        int64   `json:"requester_id"`
	RequestsLastMinute int     `json:"requests_last_minute"`
	Limit              int     `json:"limit"`
	NextResetSeconds   float64 `json:"next_reset_in"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Running    bool   `json:"running"`
	QueueDepth int    `json:"queue_depth"`
	ActiveJobs int    `json:"active_jobs"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
