package store

import (
	"testing"
)

func TestCreateTagIsCaseInsensitive(t *testing.T) {
	st := newTestStore(t)

	first, err := st.CreateTag("Golang")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := st.CreateTag("golang")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing tag returned, got %d vs %d", second.ID, first.ID)
	}
	// The original casing wins.
	if second.Name != "Golang" {
		t.Fatalf("expected original casing preserved, got %q", second.Name)
	}

	if _, err := st.CreateTag("   "); err == nil {
		t.Fatalf("expected blank tag name to be rejected")
	}

	tags, err := st.ListTags()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected one tag, got %d", len(tags))
	}
}

func TestRenameTagRewritesDocuments(t *testing.T) {
	st := newTestStore(t)

	tag, err := st.CreateTag("backend")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := st.CreateTag("senior"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	job, err := st.UpsertJob("jd.txt", "Go developer", nil, []string{"backend", "senior"})
	if err != nil {
		t.Fatalf("upsert job failed: %v", err)
	}
	resume, err := st.UpsertResume("cv.txt", "Ada, Go engineer", nil, []string{"Backend"})
	if err != nil {
		t.Fatalf("upsert resume failed: %v", err)
	}

	renamed, err := st.RenameTag(tag.ID, "server-side")
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if renamed.Name != "server-side" {
		t.Fatalf("expected renamed tag, got %q", renamed.Name)
	}

	gotJob, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job failed: %v", err)
	}
	if len(gotJob.Tags) != 2 || gotJob.Tags[0] != "server-side" || gotJob.Tags[1] != "senior" {
		t.Fatalf("expected job tags rewritten, got %v", gotJob.Tags)
	}

	// Rename matches document tags case-insensitively.
	gotResume, err := st.GetResume(resume.ID)
	if err != nil {
		t.Fatalf("get resume failed: %v", err)
	}
	if len(gotResume.Tags) != 1 || gotResume.Tags[0] != "server-side" {
		t.Fatalf("expected resume tags rewritten, got %v", gotResume.Tags)
	}
}

func TestRenameTagRejectsClash(t *testing.T) {
	st := newTestStore(t)

	tag, err := st.CreateTag("backend")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := st.CreateTag("frontend"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := st.RenameTag(tag.ID, "Frontend"); err == nil {
		t.Fatalf("expected case-insensitive clash to be rejected")
	}
}

func TestDeleteTagStripsDocuments(t *testing.T) {
	st := newTestStore(t)

	tag, err := st.CreateTag("legacy")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	job, err := st.UpsertJob("jd.txt", "COBOL maintainer", nil, []string{"legacy", "urgent"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := st.DeleteTag(tag.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := st.DeleteTag(tag.ID); err != ErrNotFound {
		t.Fatalf("expected second delete to miss, got %v", err)
	}

	got, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "urgent" {
		t.Fatalf("expected tag stripped from job, got %v", got.Tags)
	}
}

func TestEnsureTagsCreatesMissing(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.CreateTag("go"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := st.EnsureTags([]string{"go", "sql", "Go"}); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	tags, err := st.ListTags()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
}
