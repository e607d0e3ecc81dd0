package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/logging"
	"resumatch/internal/pipeline"
	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// Pool runs W claim-loop workers over the durable run queue. Workers are
// independent; the store's atomic claim is the only serialization point
// between them. A claimed run gets a heartbeat goroutine that keeps
// last_log_at fresh while the pipeline waits on the LLM.
type Pool struct {
	config      *config.Config
	store       *store.Store
	scorer      *pipeline.Scorer
	ingester    *pipeline.Ingester
	coordinator *pipeline.Coordinator
	logger      logging.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   *PoolStats
}

// NewPool creates a worker pool over the given store and pipelines.
func NewPool(cfg *config.Config, st *store.Store, scorer *pipeline.Scorer, ingester *pipeline.Ingester, coordinator *pipeline.Coordinator) *Pool {
	return &Pool{
		config:      cfg,
		store:       st,
		scorer:      scorer,
		ingester:    ingester,
		coordinator: coordinator,
		logger:      logging.GetGlobalLogger(),
		stats:       NewPoolStats(cfg.Workers.PoolSize),
	}
}

// Start launches the claim loops.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 1; i <= p.config.Workers.PoolSize; i++ {
		p.wg.Add(1)
		go p.claimLoop(ctx, i)
	}

	p.running = true
	p.logger.Info("Worker pool started", map[string]interface{}{
		"workers":     p.config.Workers.PoolSize,
		"max_running": p.config.Workers.MaxRunning,
	})
	return nil
}

// Stop stops claiming new runs and waits for in-flight runs to finish.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
	return nil
}

// IsRunning reports whether the pool is accepting work.
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Stats returns a snapshot of pool counters and per-worker state.
func (p *Pool) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

func (p *Pool) claimLoop(ctx context.Context, workerID int) {
	defer p.wg.Done()

	logger := p.logger.WithField("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Worker stopping")
			return
		default:
		}

		run, err := p.store.ClaimNextRun(p.config.Workers.MaxRunning)
		if err != nil {
			logger.Error("Claim failed", map[string]interface{}{"error": err.Error()})
			p.sleep(ctx)
			continue
		}
		if run == nil {
			p.sleep(ctx)
			continue
		}

		p.stats.WorkerBusy(workerID, run.ID)
		p.execute(ctx, workerID, run)
		p.stats.WorkerIdle(workerID)
	}
}

func (p *Pool) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.config.Workers.PollInterval):
	}
}

// execute runs one claimed run to a terminal state.
func (p *Pool) execute(ctx context.Context, workerID int, run *models.Run) {
	logger := p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"run_id":    run.ID,
		"job_type":  string(run.JobType),
	})
	logger.Info("Run claimed")

	handle := pipeline.NewRunHandle(p.store, run.ID)
	handle.Log("info", fmt.Sprintf("Run started (%s)", run.JobType))

	stopHeartbeat := p.startHeartbeat(run.ID)
	defer stopHeartbeat()

	result, err := p.dispatch(ctx, handle, run)
	p.stats.RunProcessed()

	switch {
	case err == nil:
		if run.JobType == models.JobTypeScoreMatch {
			if cerr := p.coordinator.OnScoreCompleted(handle, run.Payload); cerr != nil {
				handle.Log("warn", fmt.Sprintf("Deep-cap coordination failed: %v", cerr))
			}
		}
		if serr := p.store.CompleteRun(run.ID, result); serr != nil {
			logger.Error("Failed to mark run completed", map[string]interface{}{"error": serr.Error()})
			return
		}
		handle.Log("info", "Run completed")
		p.stats.RunSucceeded()

	case errors.Is(err, pipeline.ErrRunCanceled):
		handle.Log("warn", "Run canceled")
		p.stats.RunCanceled()

	default:
		var paused *pipeline.PausedError
		if errors.As(err, &paused) {
			if serr := p.store.MarkRunPaused(run.ID, paused.Reason); serr != nil {
				logger.Error("Failed to mark run paused", map[string]interface{}{"error": serr.Error()})
			}
			handle.Log("warn", fmt.Sprintf("Run paused: %s", paused.Reason))
			p.stats.RunPaused()
			return
		}
		p.failOrSettle(handle, run.ID, err)
	}
}

// failOrSettle marks a failing run according to any cancel or pause request
// that raced with the failure.
func (p *Pool) failOrSettle(handle *pipeline.RunHandle, runID int64, runErr error) {
	if canceled, err := p.store.IsRunCanceled(runID); err == nil && canceled {
		handle.Log("warn", fmt.Sprintf("Run canceled mid-flight: %v", runErr))
		p.stats.RunCanceled()
		return
	}
	if paused, reason, err := p.store.IsRunPauseRequested(runID); err == nil && paused {
		if serr := p.store.MarkRunPaused(runID, reason); serr == nil {
			handle.Log("warn", fmt.Sprintf("Run paused after error: %v", runErr))
			p.stats.RunPaused()
			return
		}
	}

	handle.Log("error", fmt.Sprintf("Run failed: %v\n%s", runErr, debug.Stack()))
	if err := p.store.FailRun(runID, runErr.Error()); err != nil {
		p.logger.Error("Failed to mark run failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
	p.stats.RunFailed()
}

func (p *Pool) dispatch(ctx context.Context, handle *pipeline.RunHandle, run *models.Run) (*models.RunResult, error) {
	switch run.JobType {
	case models.JobTypeScoreMatch:
		return p.scorer.ScoreMatch(ctx, handle, run.Payload)
	case models.JobTypeIngestJob:
		return p.ingester.IngestJob(ctx, handle, run.Payload)
	case models.JobTypeIngestResume:
		return p.ingester.IngestResume(ctx, handle, run.Payload)
	case models.JobTypeIngestJobFile:
		return p.ingester.IngestJobFile(ctx, handle, run.Payload)
	case models.JobTypeIngestResumeFile:
		return p.ingester.IngestResumeFile(ctx, handle, run.Payload)
	case models.JobTypeIngestAutoFile:
		return p.ingester.IngestAutoFile(ctx, handle, run.Payload)
	case models.JobTypeReprocessJob:
		return p.ingester.ReprocessJob(ctx, handle, run.Payload)
	case models.JobTypeReprocessResume:
		return p.ingester.ReprocessResume(ctx, handle, run.Payload)
	default:
		return nil, fmt.Errorf("unknown job type %q", run.JobType)
	}
}

// startHeartbeat writes a debug line to the run every heartbeat interval
// while the run stays in the running state. The append refreshes
// last_log_at, so a run waiting on a long LLM call is never reported stuck.
func (p *Pool) startHeartbeat(runID int64) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(p.config.Heartbeat())
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				run, err := p.store.GetRun(runID)
				if err != nil || run.Status != models.RunStatusRunning {
					return
				}
				if run.Payload.PauseRequested {
					_ = p.store.AppendRunLog(runID, "info", "Pause requested; waiting for current LLM/IO step to return before pausing")
					continue
				}
				_ = p.store.AppendRunLog(runID, "debug", "heartbeat")
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
