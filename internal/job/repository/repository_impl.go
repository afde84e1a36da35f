package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	jobdomain "github.com/plansight/plansight/internal/job/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) jobdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, job *jobdomain.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return jobdomain.ErrInvalidJob
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repo) Get(ctx context.Context, jobID string) (*jobdomain.AnalysisJob, error) {
	var job jobdomain.AnalysisJob
	err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jobdomain.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *repo) Transition(ctx context.Context, jobID string, from, to jobdomain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&jobdomain.AnalysisJob{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return jobdomain.ErrInvalidTransition
	}
	return nil
}

func (r *repo) Finalize(ctx context.Context, job *jobdomain.AnalysisJob, from jobdomain.Status) error {
	if job == nil || job.ID == "" {
		return jobdomain.ErrInvalidJob
	}
	if !job.Status.Terminal() {
		return jobdomain.ErrInvalidTransition
	}
	symbols := job.Symbols
	if symbols == nil {
		raw, err := json.Marshal([]jobdomain.Symbol{})
		if err != nil {
			return err
		}
		symbols = raw
	}
	result := r.db.WithContext(ctx).
		Model(&jobdomain.AnalysisJob{}).
		Where("id = ? AND status = ?", job.ID, from).
		Updates(map[string]any{
			"status":           job.Status,
			"symbols":          symbols,
			"total_symbols":    job.TotalSymbols,
			"average_accuracy": job.AverageAccuracy,
			"is_analyzed":      job.AIAnalysis.IsAnalyzed,
			"ai_confidence":    job.AIAnalysis.Confidence,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return jobdomain.ErrInvalidTransition
	}
	return nil
}

func (r *repo) ListByStatus(ctx context.Context, status jobdomain.Status, limit int) ([]jobdomain.AnalysisJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []jobdomain.AnalysisJob
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
