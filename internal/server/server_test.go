package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	admissionservice "github.com/plansight/plansight/internal/admission/service"
	"github.com/plansight/plansight/internal/clock"
	"github.com/plansight/plansight/internal/config"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	jobrepository "github.com/plansight/plansight/internal/job/repository"
	jobservice "github.com/plansight/plansight/internal/job/service"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	ledgerservice "github.com/plansight/plansight/internal/ledger/service"
	"github.com/plansight/plansight/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testStack struct {
	server *Server
	jobs   jobdomain.Service
	clk    *clock.FakeClock
}

func setupServer(t *testing.T) *testStack {
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
	if err := db.AutoMigrate(&ledgerdomain.UsageRecord{}, &jobdomain.AnalysisJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	ledgerSvc := ledgerservice.NewService(ledgerservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Quota: config.NewStaticQuotaHolder(config.QuotaConfig{FreeMonthlyLimit: 10, BasicMonthlyLimit: 100}),
	})
	jobSvc := jobservice.NewService(jobservice.ServiceParam{
		DB:   db,
		Log:  log,
		Repo: jobrepository.Provide(db),
	})
	admissionSvc := admissionservice.NewService(admissionservice.ServiceParam{
		Log:     log,
		Ledger:  ledgerSvc,
		Starter: jobSvc,
	})
	trackers := tracker.NewFactory(jobSvc, log, tracker.Config{
		PollInterval: 10 * time.Millisecond,
		Deadline:     2 * time.Second,
	}, nil)

	server := NewServer(ServerParams{
		Gin:          NewEngine(log),
		Cfg:          config.Config{},
		Log:          log,
		LedgerSvc:    ledgerSvc,
		JobSvc:       jobSvc,
		AdmissionSvc: admissionSvc,
		Trackers:     trackers,
		Gatherer:     prometheus.NewRegistry(),
	})
	registerRoutes(server)

	return &testStack{server: server, jobs: jobSvc, clk: clk}
}

func (ts *testStack) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	ts := setupServer(t)
	if w := ts.do(t, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireUser(t *testing.T) {
	ts := setupServer(t)
	w := ts.do(t, http.MethodGet, "/v1/usage", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user header, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartAnalysisAndGetJob(t *testing.T) {
	ts := setupServer(t)

	w := ts.do(t, http.MethodPost, "/v1/analyses", "user-1", `{"image_key":"blueprints/a.png","cost":0.25}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var decision struct {
		Accepted bool   `json:"accepted"`
		JobID    string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if !decision.Accepted || decision.JobID == "" {
		t.Fatalf("expected accepted decision with job ID, got %s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/v1/jobs/"+decision.JobID, "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var job jobdomain.AnalysisJob
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != jobdomain.StatusProcessing {
		t.Fatalf("expected processing job, got %s", job.Status)
	}
}

func TestQuotaExceededReturns429(t *testing.T) {
	ts := setupServer(t)

	for i := 0; i < 10; i++ {
		w := ts.do(t, http.MethodPost, "/v1/analyses", "user-1", `{"image_key":"blueprints/a.png"}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("analysis %d: expected 202, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := ts.do(t, http.MethodPost, "/v1/analyses", "user-1", `{"image_key":"blueprints/a.png"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	var decision struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Accepted || decision.Reason != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded rejection, got %s", w.Body.String())
	}
}

func TestGetUnknownJobReturns404(t *testing.T) {
	ts := setupServer(t)
	if w := ts.do(t, http.MethodGet, "/v1/jobs/missing", "user-1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWaitJobReturnsTerminalSnapshot(t *testing.T) {
	ts := setupServer(t)
	ctx := context.Background()

	jobID, err := ts.jobs.StartJob(ctx, "user-1", "blueprints/a.png")
	if err != nil {
		t.Fatalf("start job: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = ts.jobs.Fail(ctx, jobID)
	}()

	w := ts.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/wait", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snapshot tracker.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.Outcome != tracker.OutcomeTerminal || snapshot.Status != jobdomain.StatusFailed {
		t.Fatalf("expected terminal failed snapshot, got %s", w.Body.String())
	}
}

func TestUsageAndUpgrade(t *testing.T) {
	ts := setupServer(t)

	w := ts.do(t, http.MethodGet, "/v1/usage", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/v1/subscription", "user-1", `{"tier":"basic","duration_months":6}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var record ledgerdomain.UsageRecord
	if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Tier != ledgerdomain.TierBasic || record.Limit.Value != 100 {
		t.Fatalf("expected basic tier with limit 100, got %s", w.Body.String())
	}

	w = ts.do(t, http.MethodPost, "/v1/subscription", "user-1", `{"tier":"gold","duration_months":6}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid tier, got %d: %s", w.Code, w.Body.String())
	}
}
