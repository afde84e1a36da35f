// Package domain contains persistence models for the per-user usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is a subscription level determining quota policy.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPremium:
		return true
	default:
		return false
	}
}

// Limit is a monthly analysis quota that is either bounded or
// unlimited. Unlimited is an explicit variant, never a large number.
type Limit struct {
	Unlimited bool `gorm:"column:unlimited;not null;default:false" json:"unlimited"`
	Value     int  `gorm:"column:analysis_limit;not null;default:0" json:"value"`
}

func BoundedLimit(n int) Limit {
	return Limit{Value: n}
}

func UnlimitedLimit() Limit {
	return Limit{Unlimited: true}
}

// Remaining returns how many analyses are left this month. The second
// return is false when the limit is unlimited.
func (l Limit) Remaining(used int) (int, bool) {
	if l.Unlimited {
		return 0, false
	}
	remaining := l.Value - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// UsageRecord tracks one user's analysis quota usage and subscription.
// Exactly one record exists per user; it is created lazily on first
// access and never deleted during normal operation.
type UsageRecord struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID               string       `gorm:"uniqueIndex;type:text;not null" json:"user_id"`
	AnalysisCount        int          `gorm:"not null;default:0" json:"analysis_count"`
	MonthlyAnalysisCount int          `gorm:"not null;default:0" json:"monthly_analysis_count"`
	LastAnalysisDate     *time.Time   `json:"last_analysis_date,omitempty"`
	CurrentMonthYear     string       `gorm:"type:text;not null" json:"current_month_year"`
	TotalCost            float64      `gorm:"not null;default:0" json:"total_cost"`
	Tier                 Tier         `gorm:"type:text;not null" json:"tier"`
	SubscriptionStart    *time.Time   `json:"subscription_start,omitempty"`
	SubscriptionEnd      *time.Time   `json:"subscription_end,omitempty"`
	Limit                Limit        `gorm:"embedded" json:"limit"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
