package pipeline

import (
	"fmt"

	"resumatch/internal/store"
	"resumatch/pkg/models"
)

// Coordinator implements the deep-cap two-phase batch policy: a batch of
// Pass-1-only runs completes first, then exactly one worker promotes the
// top-K scorers to Deep runs. The one-shot promotion is guarded by an
// atomic group flag in the store, so it fires once no matter how many
// workers finish simultaneously.
type Coordinator struct {
	store *store.Store
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(st *store.Store) *Coordinator {
	return &Coordinator{store: st}
}

// OnScoreCompleted is called by the worker after every successful
// score_match run carrying deep-cap batch metadata. When the whole batch
// has a persisted match, the winning caller enqueues the Deep wave.
func (c *Coordinator) OnScoreCompleted(handle *RunHandle, payload models.RunPayload) error {
	if !payload.DeepCapBatchMode || payload.BatchGroupKey == "" || payload.LegacyRunID == 0 {
		return nil
	}

	// Completion and ranking are scoped to the batch's linked matches;
	// matches the job already had outside the batch are not part of it.
	count, err := c.store.CountMatchesForBatch(payload.LegacyRunID, payload.JobID)
	if err != nil {
		return err
	}
	if count < payload.BatchTotalForJob {
		return nil
	}

	acquired, err := c.store.SetGroupFlag("deep-wave:" + payload.BatchGroupKey)
	if err != nil {
		return err
	}
	if !acquired {
		// Another worker already triggered the wave.
		return nil
	}

	winners, err := c.store.TopMatchesForBatch(payload.LegacyRunID, payload.JobID, payload.BatchDeepCap)
	if err != nil {
		return err
	}

	handle.Log("info", fmt.Sprintf("Deep-cap batch complete: promoting top %d of %d matches", len(winners), count))

	for _, match := range winners {
		followUp := models.RunPayload{
			JobID:       match.JobID,
			ResumeID:    match.ResumeID,
			Threshold:   payload.Threshold,
			AutoDeep:    true,
			LegacyRunID: payload.LegacyRunID,
		}
		run, err := c.store.EnqueueRun(models.JobTypeScoreMatch, followUp)
		if err != nil {
			return err
		}
		handle.Log("info", fmt.Sprintf("Enqueued deep run %d for resume %d (standard score %s)",
			run.ID, match.ResumeID, formatStandardScore(match)))
	}
	return nil
}

func formatStandardScore(m *models.Match) string {
	if m.StandardScore == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *m.StandardScore)
}
