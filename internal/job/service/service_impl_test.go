package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	jobrepository "github.com/plansight/plansight/internal/job/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupJobs(t *testing.T) jobdomain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&jobdomain.AnalysisJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewService(ServiceParam{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: jobrepository.Provide(db),
	})
}

func TestJobLifecycleForwardOnly(t *testing.T) {
	service := setupJobs(t)
	ctx := context.Background()

	job, err := service.Create(ctx, jobdomain.CreateJobRequest{
		UserID:   "user-1",
		ImageKey: "blueprints/floor-2.png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != jobdomain.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", job.Status)
	}

	if err := service.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	// A second pickup of the same job must lose the guarded update.
	if err := service.MarkProcessing(ctx, job.ID); !errors.Is(err, jobdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	symbols := []jobdomain.Symbol{
		{Label: "door", Confidence: 0.93, X: 10, Y: 20, Width: 30, Height: 40},
		{Label: "window", Confidence: 0.88, X: 55, Y: 20, Width: 25, Height: 25},
	}
	if err := service.Complete(ctx, jobdomain.CompleteJobRequest{
		JobID:           job.ID,
		Symbols:         symbols,
		AverageAccuracy: 0.905,
		Confidence:      0.91,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Terminal states are final.
	if err := service.Complete(ctx, jobdomain.CompleteJobRequest{JobID: job.ID}); !errors.Is(err, jobdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on re-complete, got %v", err)
	}
	if err := service.Fail(ctx, job.ID); !errors.Is(err, jobdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on fail-after-complete, got %v", err)
	}

	got, err := service.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != jobdomain.StatusCompleted || !got.AIAnalysis.IsAnalyzed {
		t.Fatalf("expected analyzed completed job, got %+v", got)
	}
	if got.TotalSymbols != 2 || got.AverageAccuracy != 0.905 {
		t.Fatalf("expected 2 symbols at accuracy 0.905, got %+v", got)
	}
	var stored []jobdomain.Symbol
	if err := json.Unmarshal(got.Symbols, &stored); err != nil {
		t.Fatalf("unmarshal symbols: %v", err)
	}
	if len(stored) != 2 || stored[0].Label != "door" {
		t.Fatalf("unexpected stored symbols %+v", stored)
	}
}

func TestFailFromProcessing(t *testing.T) {
	service := setupJobs(t)
	ctx := context.Background()

	jobID, err := service.StartJob(ctx, "user-1", "blueprints/a.png")
	if err != nil {
		t.Fatalf("start job: %v", err)
	}

	job, err := service.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != jobdomain.StatusProcessing {
		t.Fatalf("started job must be processing, got %s", job.Status)
	}

	if err := service.Fail(ctx, jobID); err != nil {
		t.Fatalf("fail: %v", err)
	}
	job, err = service.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != jobdomain.StatusFailed || job.AIAnalysis.IsAnalyzed {
		t.Fatalf("expected unanalyzed failed job, got %+v", job)
	}
}

func TestGetUnknownJob(t *testing.T) {
	service := setupJobs(t)

	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, jobdomain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := service.Create(context.Background(), jobdomain.CreateJobRequest{UserID: "", ImageKey: "x"}); !errors.Is(err, jobdomain.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob, got %v", err)
	}
}
