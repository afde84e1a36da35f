package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	admissiondomain "github.com/plansight/plansight/internal/admission/domain"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	obsmetrics "github.com/plansight/plansight/internal/observability/metrics"
	"github.com/plansight/plansight/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	admissionLockKey = "admission:user:%s"
	admissionLockTTL = 10 * time.Second
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	Ledger  ledgerdomain.Service
	Starter admissiondomain.JobStarter
	Locker  *ratelimit.Locker   `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	ledger  ledgerdomain.Service
	starter admissiondomain.JobStarter
	locker  *ratelimit.Locker
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) admissiondomain.Service {
	return &Service{
		log:     p.Log.Named("admission.service"),
		ledger:  p.Ledger,
		starter: p.Starter,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

func (s *Service) StartAnalysis(ctx context.Context, req admissiondomain.StartAnalysisRequest) (admissiondomain.Decision, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		s.metrics.IncAdmission("rejected_not_authenticated")
		return admissiondomain.Decision{Reason: admissiondomain.ReasonNotAuthenticated}, nil
	}
	if strings.TrimSpace(req.ImageKey) == "" {
		return admissiondomain.Decision{}, admissiondomain.ErrInvalidRequest
	}

	// Serialize check-then-charge per user when a locker is configured.
	// The lock is advisory; the ledger's store-level increments stay
	// correct without it.
	if s.locker != nil {
		key := fmt.Sprintf(admissionLockKey, userID)
		token, ok, err := s.locker.TryLock(ctx, key, admissionLockTTL)
		if err != nil {
			s.log.Warn("admission lock unavailable", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			defer func() {
				_ = s.locker.Release(ctx, key, token)
			}()
		}
	}

	eligibility, err := s.ledger.CanAnalyze(ctx, userID)
	if err != nil {
		return admissiondomain.Decision{}, err
	}
	if !eligibility.CanAnalyze {
		s.metrics.IncAdmission("rejected_quota_exceeded")
		s.log.Info("admission rejected",
			zap.String("user_id", userID),
			zap.String("tier", string(eligibility.Tier)),
			zap.Int("remaining", eligibility.Remaining),
		)
		return admissiondomain.Decision{
			Reason:      admissiondomain.ReasonQuotaExceeded,
			Eligibility: eligibility,
		}, nil
	}

	// A failed start must leave the ledger untouched: retries of a job
	// that never started must not consume quota.
	jobID, err := s.starter.StartJob(ctx, userID, req.ImageKey)
	if err != nil {
		s.metrics.IncAdmission("start_failed")
		return admissiondomain.Decision{}, err
	}

	if err := s.ledger.RecordAnalysis(ctx, userID, req.Cost); err != nil {
		// The job is already running; surface the uncounted charge
		// instead of pretending the analysis was never admitted.
		s.metrics.IncAdmission("charge_failed")
		s.log.Error("charge not applied for started job",
			zap.String("user_id", userID),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return admissiondomain.Decision{
				Accepted:    true,
				JobID:       jobID,
				Eligibility: eligibility,
			}, fmt.Errorf("%w: %s", admissiondomain.ErrChargeNotApplied, err)
	}

	s.metrics.IncAdmission("accepted")
	return admissiondomain.Decision{
		Accepted:    true,
		JobID:       jobID,
		Eligibility: eligibility,
	}, nil
}
