// Package tracker observes an asynchronously-processed analysis job
// until it reaches a terminal state, the watch deadline expires, or the
// caller cancels.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	jobdomain "github.com/plansight/plansight/internal/job/domain"
	obsmetrics "github.com/plansight/plansight/internal/observability/metrics"
	"go.uber.org/zap"
)

// ErrNotIdle is returned when Start is called on a session that is
// already watching or stopped.
var ErrNotIdle = errors.New("tracker_session_not_idle")

// Outcome is how a finished watch session ended. A deadline expiry is
// not an error: the job may still finish later out-of-band.
type Outcome string

const (
	OutcomeTerminal Outcome = "terminal"
	OutcomeDeadline Outcome = "deadline"
	OutcomeCanceled Outcome = "canceled"
)

// State is the tracker's own lifecycle, independent of the job's.
type State string

const (
	StateIdle     State = "idle"
	StateWatching State = "watching"
	StateStopped  State = "stopped"
)

// Fetcher reads the current job record. jobdomain.Service satisfies it.
type Fetcher interface {
	Get(ctx context.Context, jobID string) (*jobdomain.AnalysisJob, error)
}

// Snapshot is the session's observed state at a point in time.
type Snapshot struct {
	State   State                  `json:"state"`
	JobID   string                 `json:"job_id"`
	Status  jobdomain.Status       `json:"status,omitempty"`
	Job     *jobdomain.AnalysisJob `json:"job,omitempty"`
	Outcome Outcome                `json:"outcome,omitempty"`
}

// Factory builds watch sessions around a shared fetcher.
type Factory struct {
	fetcher Fetcher
	log     *zap.Logger
	cfg     Config
	metrics *obsmetrics.Metrics
}

func NewFactory(fetcher Fetcher, log *zap.Logger, cfg Config, metrics *obsmetrics.Metrics) *Factory {
	return &Factory{
		fetcher: fetcher,
		log:     log.Named("tracker"),
		cfg:     cfg.withDefaults(),
		metrics: metrics,
	}
}

// Session is one watch of one job. It owns exactly two timers (poll
// ticker, deadline timer); both are released on every exit path by the
// single goroutine that runs the session.
type Session struct {
	fetcher Fetcher
	log     *zap.Logger
	cfg     Config
	metrics *obsmetrics.Metrics

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	started bool
	jobID   string
	status  jobdomain.Status
	job     *jobdomain.AnalysisJob
	outcome Outcome
}

// NewSession builds an idle session for jobID; Start begins watching.
func (f *Factory) NewSession(jobID string) *Session {
	return &Session{
		fetcher: f.fetcher,
		log:     f.log.With(zap.String("job_id", jobID)),
		cfg:     f.cfg,
		metrics: f.metrics,
		done:    make(chan struct{}),
		state:   StateIdle,
		jobID:   jobID,
	}
}

// Watch starts a session for jobID. The session polls until the job is
// terminal, the deadline expires, ctx is canceled, or Stop is called.
func (f *Factory) Watch(ctx context.Context, jobID string) *Session {
	s := f.NewSession(jobID)
	_ = s.Start(ctx)
	return s
}

// Start transitions the session from Idle to Watching and launches the
// poll goroutine. Starting a session twice is an error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateWatching
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.cfg.Deadline)
	defer deadline.Stop()

	if s.poll(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.finish(OutcomeCanceled)
			return
		case <-deadline.C:
			s.finish(OutcomeDeadline)
			s.log.Info("stopped watching before terminal state",
				zap.String("last_status", string(s.Snapshot().Status)),
			)
			return
		case <-ticker.C:
			if s.poll(ctx) {
				return
			}
		}
	}
}

// poll fetches the job once and reports whether the session finished.
// Fetch failures are transient: logged and retried on the next tick
// without touching the deadline.
func (s *Session) poll(ctx context.Context) bool {
	job, err := s.fetcher.Get(ctx, s.jobID)
	if err != nil {
		if ctx.Err() != nil {
			s.finish(OutcomeCanceled)
			return true
		}
		s.metrics.IncPollError()
		s.log.Warn("job fetch failed, retrying on next tick", zap.Error(err))
		return false
	}
	return s.apply(job)
}

// apply folds a fetched record into the observed state. It discards
// results arriving after the session stopped and results that would
// regress the observed status (stale out-of-order reads).
func (s *Session) apply(job *jobdomain.AnalysisJob) bool {
	if job == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWatching {
		return true
	}
	if job.Status.Rank() < s.status.Rank() {
		return false
	}
	s.status = job.Status
	s.job = job
	if job.Status.Terminal() {
		s.finishLocked(OutcomeTerminal)
		return true
	}
	return false
}

// ManualRefresh performs one immediate out-of-band fetch. It does not
// reset the deadline or restart the poll ticker, and it is a no-op once
// the session has stopped.
func (s *Session) ManualRefresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateWatching {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	jobID := s.jobID
	s.mu.Unlock()

	job, err := s.fetcher.Get(ctx, jobID)
	if err != nil {
		s.metrics.IncPollError()
		return s.Snapshot(), err
	}
	s.apply(job)
	return s.Snapshot(), nil
}

// Stop cancels the session. Idempotent; any poll or refresh already in
// flight cannot mutate observed state afterward.
func (s *Session) Stop() {
	s.finish(OutcomeCanceled)
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Done is closed when the session goroutine has exited and both timers
// are released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		JobID:   s.jobID,
		Status:  s.status,
		Job:     s.job,
		Outcome: s.outcome,
	}
}

func (s *Session) finish(outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(outcome)
}

// finishLocked records the first outcome and releases the session's
// context. Later calls are no-ops, so every exit path can finish safely.
func (s *Session) finishLocked(outcome Outcome) {
	if s.state == StateStopped {
		return
	}
	s.state = StateStopped
	s.outcome = outcome
	if s.cancel != nil {
		s.cancel()
	}
	if !s.started {
		// No goroutine owns done for a session stopped while idle.
		close(s.done)
	}
	s.metrics.IncTrackerOutcome(string(outcome))
}
