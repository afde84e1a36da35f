package domain

import (
	"context"
	"errors"
)

// Eligibility is the result of a quota check. Quota exhaustion is a
// normal result, not an error.
type Eligibility struct {
	CanAnalyze bool  `json:"can_analyze"`
	Remaining  int   `json:"remaining"`
	Unlimited  bool  `json:"unlimited"`
	Tier       Tier  `json:"tier"`
	Limit      Limit `json:"limit"`
}

type UpgradeRequest struct {
	UserID         string `json:"user_id"`
	Tier           Tier   `json:"tier"`
	DurationMonths int    `json:"duration_months"`
}

type Service interface {
	// GetOrCreate returns the user's ledger record, creating it with
	// free-tier defaults on first access. Safe under concurrent first
	// access: exactly one record exists afterward.
	GetOrCreate(ctx context.Context, userID string) (*UsageRecord, error)
	// CanAnalyze computes quota eligibility after applying any pending
	// month rollover.
	CanAnalyze(ctx context.Context, userID string) (Eligibility, error)
	// RecordAnalysis charges one analysis at the given cost. Safe under
	// concurrent calls for the same user: no increment is ever lost.
	RecordAnalysis(ctx context.Context, userID string, cost float64) error
	// UpgradeSubscription replaces the subscription block wholesale.
	// Only basic and premium are valid upgrade targets.
	UpgradeSubscription(ctx context.Context, req UpgradeRequest) (*UsageRecord, error)
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidTier     = errors.New("invalid_upgrade_tier")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrInvalidCost     = errors.New("invalid_cost")
	ErrRecordNotFound  = errors.New("usage_record_not_found")
)
