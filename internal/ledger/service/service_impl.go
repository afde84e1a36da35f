package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/plansight/plansight/internal/clock"
	"github.com/plansight/plansight/internal/config"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	obsmetrics "github.com/plansight/plansight/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Quota   *config.QuotaConfigHolder
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	quota   *config.QuotaConfigHolder
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) ledgerdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		quota:   p.Quota,
		metrics: p.Metrics,
	}
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (*ledgerdomain.UsageRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}

	now := s.clock.Now()
	record := &ledgerdomain.UsageRecord{
		ID:               s.genID.Generate(),
		UserID:           userID,
		CurrentMonthYear: clock.MonthKey(now),
		Tier:             ledgerdomain.TierFree,
		Limit:            ledgerdomain.BoundedLimit(s.quota.Get().FreeMonthlyLimit),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Concurrent first access races to a single row: the insert is a
	// no-op for every caller that lost, and all callers read back the
	// one surviving record.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}

	stored, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.applyRollover(ctx, stored)
}

func (s *Service) CanAnalyze(ctx context.Context, userID string) (ledgerdomain.Eligibility, error) {
	record, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return ledgerdomain.Eligibility{}, err
	}

	eligibility := ledgerdomain.Eligibility{
		Tier:  record.Tier,
		Limit: record.Limit,
	}
	remaining, bounded := record.Limit.Remaining(record.MonthlyAnalysisCount)
	if !bounded {
		eligibility.CanAnalyze = true
		eligibility.Unlimited = true
		return eligibility, nil
	}
	eligibility.Remaining = remaining
	eligibility.CanAnalyze = remaining > 0
	return eligibility, nil
}

func (s *Service) RecordAnalysis(ctx context.Context, userID string, cost float64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ledgerdomain.ErrInvalidUser
	}
	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return ledgerdomain.ErrInvalidCost
	}

	// Ensures the record exists and its month bucket is current before
	// the monthly counter moves.
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return err
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Model(&ledgerdomain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"analysis_count":         gorm.Expr("analysis_count + 1"),
			"monthly_analysis_count": gorm.Expr("monthly_analysis_count + 1"),
			"total_cost":             gorm.Expr("total_cost + ?", cost),
			"last_analysis_date":     now,
			"updated_at":             now,
		})
	if result.Error != nil {
		s.metrics.IncRecordFailure()
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.metrics.IncRecordFailure()
		return ledgerdomain.ErrRecordNotFound
	}
	return nil
}

func (s *Service) UpgradeSubscription(ctx context.Context, req ledgerdomain.UpgradeRequest) (*ledgerdomain.UsageRecord, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	// Free is the default state, not an upgrade target.
	if req.Tier != ledgerdomain.TierBasic && req.Tier != ledgerdomain.TierPremium {
		return nil, ledgerdomain.ErrInvalidTier
	}
	if req.DurationMonths <= 0 {
		return nil, ledgerdomain.ErrInvalidDuration
	}

	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	limit := s.tierLimit(req.Tier)
	now := s.clock.Now()
	end := now.AddDate(0, req.DurationMonths, 0)

	// The subscription block is replaced wholesale: tier defaults
	// always overwrite a previously customized limit.
	result := s.db.WithContext(ctx).
		Model(&ledgerdomain.UsageRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"tier":               req.Tier,
			"subscription_start": now,
			"subscription_end":   end,
			"unlimited":          limit.Unlimited,
			"analysis_limit":     limit.Value,
			"updated_at":         now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ledgerdomain.ErrRecordNotFound
	}

	s.log.Info("subscription upgraded",
		zap.String("user_id", userID),
		zap.String("tier", string(req.Tier)),
		zap.Int("duration_months", req.DurationMonths),
	)
	return s.fetch(ctx, userID)
}

func (s *Service) tierLimit(tier ledgerdomain.Tier) ledgerdomain.Limit {
	switch tier {
	case ledgerdomain.TierPremium:
		return ledgerdomain.UnlimitedLimit()
	case ledgerdomain.TierBasic:
		return ledgerdomain.BoundedLimit(s.quota.Get().BasicMonthlyLimit)
	default:
		return ledgerdomain.BoundedLimit(s.quota.Get().FreeMonthlyLimit)
	}
}

func (s *Service) fetch(ctx context.Context, userID string) (*ledgerdomain.UsageRecord, error) {
	var record ledgerdomain.UsageRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// applyRollover resets the monthly counter when the calendar month has
// moved past the record's bucket. The update is guarded on the old
// bucket so concurrent callers reset at most once.
func (s *Service) applyRollover(ctx context.Context, record *ledgerdomain.UsageRecord) (*ledgerdomain.UsageRecord, error) {
	month := clock.MonthKey(s.clock.Now())
	if record.CurrentMonthYear == month {
		return record, nil
	}

	result := s.db.WithContext(ctx).
		Model(&ledgerdomain.UsageRecord{}).
		Where("user_id = ? AND current_month_year = ?", record.UserID, record.CurrentMonthYear).
		Updates(map[string]any{
			"monthly_analysis_count": 0,
			"current_month_year":     month,
			"updated_at":             s.clock.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		s.metrics.IncRollover()
		s.log.Info("monthly usage rolled over",
			zap.String("user_id", record.UserID),
			zap.String("from", record.CurrentMonthYear),
			zap.String("to", month),
		)
		record.MonthlyAnalysisCount = 0
		record.CurrentMonthYear = month
		return record, nil
	}

	// Another caller applied the rollover first; read their result.
	return s.fetch(ctx, record.UserID)
}
