package store

import (
	"testing"

	"resumatch/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestSaveMatchOneRowPerPair(t *testing.T) {
	st := newTestStore(t)

	first := &models.Match{
		JobID: 1, ResumeID: 2,
		CandidateName: "Ada",
		MatchScore:    62,
		StandardScore: intPtr(62),
		Decision:      models.DecisionReview,
		Strategy:      models.StrategyStandard,
		Reasoning:     "initial pass",
	}
	id1, err := st.SaveMatch(first, 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := &models.Match{
		JobID: 1, ResumeID: 2,
		CandidateName: "Ada Lovelace",
		MatchScore:    81,
		StandardScore: intPtr(62),
		Decision:      models.DecisionMoveForward,
		Strategy:      models.StrategyDeep,
		Reasoning:     "deep scan",
	}
	id2, err := st.SaveMatch(second, 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected upsert to reuse row %d, got %d", id1, id2)
	}

	all, err := st.ListMatches(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one row per pair, got %d", len(all))
	}
	got := all[0]
	if got.MatchScore != 81 || got.Strategy != models.StrategyDeep {
		t.Fatalf("expected updated verdict, got score=%d strategy=%s", got.MatchScore, got.Strategy)
	}
	if got.StandardScore == nil || *got.StandardScore != 62 {
		t.Fatalf("expected standard score preserved")
	}
}

func TestSaveMatchUpdateByID(t *testing.T) {
	st := newTestStore(t)

	m := &models.Match{
		JobID: 3, ResumeID: 4,
		MatchScore: 40,
		Decision:   models.DecisionReject,
		Strategy:   models.StrategyStandard,
	}
	id, err := st.SaveMatch(m, 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	m.MatchScore = 75
	m.Decision = models.DecisionReview
	if _, err := st.SaveMatch(m, id); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := st.GetMatch(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.MatchScore != 75 || got.Decision != models.DecisionReview {
		t.Fatalf("expected in-place update, got score=%d decision=%s", got.MatchScore, got.Decision)
	}

	if _, err := st.SaveMatch(m, 99999); err == nil {
		t.Fatalf("expected update of missing row to fail")
	}
}

func TestGetMatchIfExistsMissesCleanly(t *testing.T) {
	st := newTestStore(t)

	m, err := st.GetMatchIfExists(7, 8)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil for unknown pair, got %+v", m)
	}
}

func TestTopMatchesForBatchRanksByStandardScore(t *testing.T) {
	st := newTestStore(t)

	lr, err := st.CreateLegacyRun("wave", 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rows := []struct {
		resumeID int64
		standard *int
		score    int
	}{
		{1, intPtr(55), 55},
		{2, intPtr(90), 90},
		{3, intPtr(70), 70},
		{4, nil, 40},
		{5, intPtr(90), 88},
	}
	for _, r := range rows {
		id, err := st.SaveMatch(&models.Match{
			JobID: 1, ResumeID: r.resumeID,
			MatchScore:    r.score,
			StandardScore: r.standard,
			Decision:      models.DecisionReview,
			Strategy:      models.StrategyStandard,
		}, 0)
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := st.LinkMatchToLegacyRun(lr.ID, id); err != nil {
			t.Fatalf("link failed: %v", err)
		}
	}
	// A stray match on the same job outside the batch is neither counted
	// nor ranked.
	if _, err := st.SaveMatch(&models.Match{
		JobID: 1, ResumeID: 6,
		MatchScore:    99,
		StandardScore: intPtr(99),
		Decision:      models.DecisionReview,
		Strategy:      models.StrategyStandard,
	}, 0); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	count, err := st.CountMatchesForBatch(lr.ID, 1)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != len(rows) {
		t.Fatalf("expected %d linked matches, got %d", len(rows), count)
	}

	top, err := st.TopMatchesForBatch(lr.ID, 1, 3)
	if err != nil {
		t.Fatalf("top failed: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(top))
	}
	// Ties on standard score fall back to match score, then resume id.
	wantOrder := []int64{2, 5, 3}
	for i, want := range wantOrder {
		if top[i].ResumeID != want {
			t.Fatalf("expected resume %d at rank %d, got %d", want, i, top[i].ResumeID)
		}
	}
}

func TestLegacyRunLinksMatches(t *testing.T) {
	st := newTestStore(t)

	lr, err := st.CreateLegacyRun("august-batch", 65)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lr.Threshold != 65 {
		t.Fatalf("expected threshold 65, got %d", lr.Threshold)
	}

	id1, err := st.SaveMatch(&models.Match{JobID: 1, ResumeID: 1, MatchScore: 80,
		Decision: models.DecisionMoveForward, Strategy: models.StrategyStandard}, 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	id2, err := st.SaveMatch(&models.Match{JobID: 1, ResumeID: 2, MatchScore: 50,
		Decision: models.DecisionReject, Strategy: models.StrategyStandard}, 0)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, matchID := range []int64{id1, id2, id1} { // relink is a no-op
		if err := st.LinkMatchToLegacyRun(lr.ID, matchID); err != nil {
			t.Fatalf("link failed: %v", err)
		}
	}

	matches, err := st.ListMatchesForLegacyRun(lr.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 linked matches, got %d", len(matches))
	}
	if matches[0].MatchScore < matches[1].MatchScore {
		t.Fatalf("expected matches ordered by score descending")
	}

	runs, err := st.ListLegacyRuns()
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Name != "august-batch" {
		t.Fatalf("unexpected legacy runs: %+v", runs)
	}
}

func TestDeleteJobRemovesItsMatches(t *testing.T) {
	st := newTestStore(t)

	job, err := st.UpsertJob("jd.txt", "Go developer", nil, nil)
	if err != nil {
		t.Fatalf("upsert job failed: %v", err)
	}
	keepJob, err := st.UpsertJob("jd2.txt", "Rust developer", nil, nil)
	if err != nil {
		t.Fatalf("upsert job failed: %v", err)
	}

	if _, err := st.SaveMatch(&models.Match{JobID: job.ID, ResumeID: 1, MatchScore: 70,
		Decision: models.DecisionReview, Strategy: models.StrategyStandard}, 0); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := st.SaveMatch(&models.Match{JobID: keepJob.ID, ResumeID: 1, MatchScore: 30,
		Decision: models.DecisionReject, Strategy: models.StrategyStandard}, 0); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := st.DeleteJob(job.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := st.GetJob(job.ID); err != ErrNotFound {
		t.Fatalf("expected job gone, got %v", err)
	}
	gone, err := st.GetMatchIfExists(job.ID, 1)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected matches of deleted job removed")
	}
	kept, err := st.GetMatchIfExists(keepJob.ID, 1)
	if err != nil || kept == nil {
		t.Fatalf("expected other job's matches untouched, got %v %v", kept, err)
	}
}
