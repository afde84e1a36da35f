package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo jobdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo jobdomain.Repository
}

func NewService(p ServiceParam) jobdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("job.service"),
		repo: p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req jobdomain.CreateJobRequest) (*jobdomain.AnalysisJob, error) {
	userID := strings.TrimSpace(req.UserID)
	imageKey := strings.TrimSpace(req.ImageKey)
	if userID == "" || imageKey == "" {
		return nil, jobdomain.ErrInvalidJob
	}

	now := time.Now().UTC()
	job := &jobdomain.AnalysisJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		ImageKey:  imageKey,
		Status:    jobdomain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, jobID string) (*jobdomain.AnalysisJob, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, jobdomain.ErrInvalidJob
	}
	return s.repo.Get(ctx, jobID)
}

func (s *Service) MarkProcessing(ctx context.Context, jobID string) error {
	return s.repo.Transition(ctx, jobID, jobdomain.StatusUploaded, jobdomain.StatusProcessing)
}

func (s *Service) Complete(ctx context.Context, req jobdomain.CompleteJobRequest) error {
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		return jobdomain.ErrInvalidJob
	}

	symbols := req.Symbols
	if symbols == nil {
		symbols = []jobdomain.Symbol{}
	}
	raw, err := json.Marshal(symbols)
	if err != nil {
		return err
	}

	job := &jobdomain.AnalysisJob{
		ID:              jobID,
		Status:          jobdomain.StatusCompleted,
		Symbols:         raw,
		TotalSymbols:    len(symbols),
		AverageAccuracy: req.AverageAccuracy,
		AIAnalysis: jobdomain.AIAnalysis{
			IsAnalyzed: true,
			Confidence: req.Confidence,
		},
	}
	if err := s.repo.Finalize(ctx, job, jobdomain.StatusProcessing); err != nil {
		return err
	}
	s.log.Info("job completed",
		zap.String("job_id", jobID),
		zap.Int("total_symbols", job.TotalSymbols),
	)
	return nil
}

func (s *Service) Fail(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return jobdomain.ErrInvalidJob
	}
	job := &jobdomain.AnalysisJob{
		ID:     jobID,
		Status: jobdomain.StatusFailed,
	}
	if err := s.repo.Finalize(ctx, job, jobdomain.StatusProcessing); err != nil {
		return err
	}
	s.log.Warn("job failed", zap.String("job_id", jobID))
	return nil
}

// StartJob satisfies the admission gate's JobStarter: it creates the
// job record and immediately hands it to the worker. The returned job
// ID identifies the durably started job.
func (s *Service) StartJob(ctx context.Context, userID, imageKey string) (string, error) {
	job, err := s.Create(ctx, jobdomain.CreateJobRequest{UserID: userID, ImageKey: imageKey})
	if err != nil {
		return "", err
	}
	if err := s.MarkProcessing(ctx, job.ID); err != nil {
		return "", err
	}
	return job.ID, nil
}
