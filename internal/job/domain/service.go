package domain

import (
	"context"
	"errors"
)

type CreateJobRequest struct {
	UserID   string `json:"user_id"`
	ImageKey string `json:"image_key"`
}

// CompleteJobRequest carries the worker's detection results.
type CompleteJobRequest struct {
	JobID           string   `json:"job_id"`
	Symbols         []Symbol `json:"symbols"`
	AverageAccuracy float64  `json:"average_accuracy"`
	Confidence      float64  `json:"confidence"`
}

type Service interface {
	// Create persists a new job in the uploaded state.
	Create(ctx context.Context, req CreateJobRequest) (*AnalysisJob, error)
	// Get returns the current job snapshot.
	Get(ctx context.Context, jobID string) (*AnalysisJob, error)
	// MarkProcessing hands the job to the worker (uploaded -> processing).
	MarkProcessing(ctx context.Context, jobID string) error
	// Complete records detections and finalizes the job (processing -> completed).
	Complete(ctx context.Context, req CompleteJobRequest) error
	// Fail finalizes the job without results (processing -> failed).
	Fail(ctx context.Context, jobID string) error
	// StartJob creates a job and hands it to the worker in one step,
	// returning the ID of the durably started job.
	StartJob(ctx context.Context, userID, imageKey string) (string, error)
}

// Repository is the persistence boundary for jobs. Status transitions
// are guarded so a terminal record can never be rewritten.
type Repository interface {
	Create(ctx context.Context, job *AnalysisJob) error
	Get(ctx context.Context, jobID string) (*AnalysisJob, error)
	// Transition moves the job from to the next status only when its
	// stored status still equals from. Returns ErrInvalidTransition on
	// a guard miss.
	Transition(ctx context.Context, jobID string, from, to Status) error
	// Finalize writes detections together with the terminal transition.
	Finalize(ctx context.Context, job *AnalysisJob, from Status) error
	// ListByStatus returns up to limit jobs in the given status.
	ListByStatus(ctx context.Context, status Status, limit int) ([]AnalysisJob, error)
}

var (
	ErrJobNotFound       = errors.New("job_not_found")
	ErrInvalidJob        = errors.New("invalid_job")
	ErrInvalidTransition = errors.New("invalid_job_transition")
)
