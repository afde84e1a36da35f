// Package domain defines the admission gate contract: the decision
// process gating whether a new analysis job may start.
package domain

import (
	"context"
	"errors"

	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
)

// RejectReason explains a rejected admission.
type RejectReason string

const (
	ReasonQuotaExceeded    RejectReason = "quota_exceeded"
	ReasonNotAuthenticated RejectReason = "not_authenticated"
)

type StartAnalysisRequest struct {
	UserID   string  `json:"user_id"`
	ImageKey string  `json:"image_key"`
	Cost     float64 `json:"cost"`
}

// Decision is the outcome of an admission attempt. A rejection is a
// normal result; errors are reserved for collaborator failures.
type Decision struct {
	Accepted    bool                     `json:"accepted"`
	Reason      RejectReason             `json:"reason,omitempty"`
	JobID       string                   `json:"job_id,omitempty"`
	Eligibility ledgerdomain.Eligibility `json:"eligibility"`
}

// JobStarter triggers external job creation. The returned job ID
// identifies a durably started job.
type JobStarter interface {
	StartJob(ctx context.Context, userID, imageKey string) (string, error)
}

type Service interface {
	// StartAnalysis runs check-then-start-then-charge: the ledger is
	// consulted first, the job is started only on eligibility, and the
	// charge lands only after the job has durably started.
	StartAnalysis(ctx context.Context, req StartAnalysisRequest) (Decision, error)
}

var (
	// ErrChargeNotApplied marks a started job whose ledger charge
	// failed; the caller must not assume the analysis was counted.
	ErrChargeNotApplied = errors.New("charge_not_applied")
	ErrInvalidRequest   = errors.New("invalid_admission_request")
)
