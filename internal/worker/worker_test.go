package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/plansight/plansight/internal/config"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	jobrepository "github.com/plansight/plansight/internal/job/repository"
	jobservice "github.com/plansight/plansight/internal/job/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupWorker(t *testing.T) (*Worker, jobdomain.Service) {
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

	repo := jobrepository.Provide(db)
	jobs := jobservice.NewService(jobservice.ServiceParam{DB: db, Log: zap.NewNop(), Repo: repo})

	worker := NewWorker(Params{
		Log:  zap.NewNop(),
		Jobs: jobs,
		Repo: repo,
		Config: config.Config{Worker: config.WorkerConfig{
			PickupInterval: 0,
			ProcessingTime: 0, // finish on first pickup
		}},
	})
	return worker, jobs
}

func TestRunOnceFinishesProcessingJobs(t *testing.T) {
	worker, jobs := setupWorker(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		jobID, err := jobs.StartJob(ctx, "user-1", fmt.Sprintf("blueprints/%d.png", i))
		if err != nil {
			t.Fatalf("start job: %v", err)
		}
		ids = append(ids, jobID)
	}

	if err := worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	for _, jobID := range ids {
		job, err := jobs.Get(ctx, jobID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !job.Status.Terminal() {
			t.Fatalf("job %s still %s after pickup", jobID, job.Status)
		}
		if job.Status == jobdomain.StatusCompleted {
			var symbols []jobdomain.Symbol
			if err := json.Unmarshal(job.Symbols, &symbols); err != nil {
				t.Fatalf("unmarshal symbols: %v", err)
			}
			if len(symbols) == 0 || job.TotalSymbols != len(symbols) {
				t.Fatalf("completed job %s carries inconsistent symbols: %d vs %d", jobID, job.TotalSymbols, len(symbols))
			}
			if !job.AIAnalysis.IsAnalyzed {
				t.Fatalf("completed job %s not marked analyzed", jobID)
			}
		}
	}

	// A second run must not touch already-terminal jobs.
	if err := worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
}

func TestRunOnceDeterministicPerJob(t *testing.T) {
	worker, jobs := setupWorker(t)
	ctx := context.Background()

	jobID, err := jobs.StartJob(ctx, "user-1", "blueprints/a.png")
	if err != nil {
		t.Fatalf("start job: %v", err)
	}
	if err := worker.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	first, err := jobs.Get(ctx, jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// The verdict is seeded by the job ID, so reprocessing the same ID
	// elsewhere would reproduce it; here we at least pin the invariants.
	if first.Status == jobdomain.StatusCompleted {
		if first.AverageAccuracy < 0.70 || first.AverageAccuracy > 0.99 {
			t.Fatalf("average accuracy out of range: %v", first.AverageAccuracy)
		}
		if first.TotalSymbols < 3 || first.TotalSymbols > 14 {
			t.Fatalf("symbol count out of range: %d", first.TotalSymbols)
		}
	}
}
