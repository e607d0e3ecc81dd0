package workers

import (
	"sync"
	"time"
)

// WorkerState is what one worker is doing right now.
type WorkerState struct {
	WorkerID int   `json:"worker_id"`
	Busy     bool  `json:"busy"`
	RunID    int64 `json:"run_id,omitempty"`
}

// StatsSnapshot is a point-in-time view of pool counters.
type StatsSnapshot struct {
	RunsProcessed int64         `json:"runs_processed"`
	RunsSucceeded int64         `json:"runs_succeeded"`
	RunsFailed    int64         `json:"runs_failed"`
	RunsCanceled  int64         `json:"runs_canceled"`
	RunsPaused    int64         `json:"runs_paused"`
	StartedAt     time.Time     `json:"started_at"`
	Workers       []WorkerState `json:"workers"`
}

// PoolStats tracks worker pool statistics.
type PoolStats struct {
	mu            sync.RWMutex
	runsProcessed int64
	runsSucceeded int64
	runsFailed    int64
	runsCanceled  int64
	runsPaused    int64
	startedAt     time.Time
	workers       map[int]WorkerState
}

// NewPoolStats creates counters for a pool of the given size.
func NewPoolStats(poolSize int) *PoolStats {
	workers := make(map[int]WorkerState, poolSize)
	for i := 1; i <= poolSize; i++ {
		workers[i] = WorkerState{WorkerID: i}
	}
	return &PoolStats{startedAt: time.Now().UTC(), workers: workers}
}

func (ps *PoolStats) RunProcessed() {
	ps.mu.Lock()
	ps.runsProcessed++
	ps.mu.Unlock()
}

func (ps *PoolStats) RunSucceeded() {
	ps.mu.Lock()
	ps.runsSucceeded++
	ps.mu.Unlock()
}

func (ps *PoolStats) RunFailed() {
	ps.mu.Lock()
	ps.runsFailed++
	ps.mu.Unlock()
}

func (ps *PoolStats) RunCanceled() {
	ps.mu.Lock()
	ps.runsCanceled++
	ps.mu.Unlock()
}

func (ps *PoolStats) RunPaused() {
	ps.mu.Lock()
	ps.runsPaused++
	ps.mu.Unlock()
}

func (ps *PoolStats) WorkerBusy(workerID int, runID int64) {
	ps.mu.Lock()
	ps.workers[workerID] = WorkerState{WorkerID: workerID, Busy: true, RunID: runID}
	ps.mu.Unlock()
}

func (ps *PoolStats) WorkerIdle(workerID int) {
	ps.mu.Lock()
	ps.workers[workerID] = WorkerState{WorkerID: workerID}
	ps.mu.Unlock()
}

// Snapshot copies the counters for reporting.
func (ps *PoolStats) Snapshot() StatsSnapshot {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	workers := make([]WorkerState, 0, len(ps.workers))
	for i := 1; i <= len(ps.workers); i++ {
		workers = append(workers, ps.workers[i])
	}
	return StatsSnapshot{
		RunsProcessed: ps.runsProcessed,
		RunsSucceeded: ps.runsSucceeded,
		RunsFailed:    ps.runsFailed,
		RunsCanceled:  ps.runsCanceled,
		RunsPaused:    ps.runsPaused,
		StartedAt:     ps.startedAt,
		Workers:       workers,
	}
}
