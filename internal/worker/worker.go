// Package worker runs a simulated analysis worker for development and
// standalone runs. It honors the production worker's contract: it is
// the single writer of a processing job and flips it to a terminal
// state exactly once.
package worker

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/plansight/plansight/internal/config"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var symbolLabels = []string{
	"outlet_duplex",
	"switch_single_pole",
	"light_fixture",
	"smoke_detector",
	"panel_board",
	"junction_box",
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Jobs   jobdomain.Service
	Repo   jobdomain.Repository
}

type Worker struct {
	log            *zap.Logger
	jobs           jobdomain.Service
	repo           jobdomain.Repository
	pickupInterval time.Duration
	processingTime time.Duration
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:            p.Log.Named("worker"),
		jobs:           p.Jobs,
		repo:           p.Repo,
		pickupInterval: p.Config.Worker.PickupInterval,
		processingTime: p.Config.Worker.ProcessingTime,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.pickupInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("worker run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	jobs, err := w.repo.ListByStatus(ctx, jobdomain.StatusProcessing, 20)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if now.Sub(job.UpdatedAt) < w.processingTime {
			continue
		}
		if err := w.finish(ctx, job); err != nil {
			w.log.Warn("finishing job failed",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Worker) finish(ctx context.Context, job jobdomain.AnalysisJob) error {
	rng := rand.New(rand.NewSource(int64(seed(job.ID))))

	// A small slice of uploads fails analysis outright.
	if rng.Intn(20) == 0 {
		return w.jobs.Fail(ctx, job.ID)
	}

	count := 3 + rng.Intn(12)
	symbols := make([]jobdomain.Symbol, 0, count)
	var accuracySum float64
	for i := 0; i < count; i++ {
		confidence := 0.70 + rng.Float64()*0.29
		accuracySum += confidence
		symbols = append(symbols, jobdomain.Symbol{
			Label:      symbolLabels[rng.Intn(len(symbolLabels))],
			Confidence: confidence,
			X:          rng.Float64() * 1000,
			Y:          rng.Float64() * 1000,
			Width:      10 + rng.Float64()*60,
			Height:     10 + rng.Float64()*60,
		})
	}

	return w.jobs.Complete(ctx, jobdomain.CompleteJobRequest{
		JobID:           job.ID,
		Symbols:         symbols,
		AverageAccuracy: accuracySum / float64(count),
		Confidence:      accuracySum / float64(count),
	})
}

func seed(jobID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return h.Sum32()
}
