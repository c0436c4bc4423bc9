package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/skillsenselab/workshopkit/checklist"
	"github.com/skillsenselab/workshopkit/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "snapshots.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.Latest(ctx, "a-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no snapshot, got %+v", latest)
	}

	idx := 0
	snap := checklist.Snapshot{
		Obtained: []checklist.ObtainedEntry{{EntryID: "budget", SourceSegmentIndex: &idx, Confidence: 0.9}},
		Missing:  []checklist.MissingEntry{{EntryID: "owner", Importance: checklist.ImportanceImportant}},
		Findings: []checklist.Finding{{Topic: "vendor", Detail: "new vendor mentioned"}},
	}
	v, err := s.Append(ctx, "a-1", snap, 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if v != 1 {
		t.Errorf("expected version 1, got %d", v)
	}

	latest, err = s.Latest(ctx, "a-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Version != 1 {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if len(latest.Obtained) != 1 || latest.Obtained[0].EntryID != "budget" {
		t.Errorf("obtained did not round-trip: %+v", latest.Obtained)
	}
	if latest.Obtained[0].SourceSegmentIndex == nil || *latest.Obtained[0].SourceSegmentIndex != 0 {
		t.Errorf("source segment did not round-trip: %v", latest.Obtained[0].SourceSegmentIndex)
	}
}

func TestAppend_StaleVersionConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, "a-1", checklist.Snapshot{}, 0); err != nil {
		t.Fatalf("append v1: %v", err)
	}

	_, err := s.Append(ctx, "a-1", checklist.Snapshot{}, 0)
	if !errors.HasCode(err, errors.ErrCodeMergeConflict) {
		t.Errorf("expected MERGE_CONFLICT, got %v", err)
	}

	if _, err := s.Append(ctx, "a-1", checklist.Snapshot{}, 1); err != nil {
		t.Fatalf("append v2: %v", err)
	}
}

func TestAppend_AnswersAreIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, "a-1", checklist.Snapshot{}, 0); err != nil {
		t.Fatalf("append a-1: %v", err)
	}
	v, err := s.Append(ctx, "a-2", checklist.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("append a-2: %v", err)
	}
	if v != 1 {
		t.Errorf("expected a-2 to start at version 1, got %d", v)
	}
}

func TestHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, "a-1", checklist.Snapshot{}, i); err != nil {
			t.Fatalf("append v%d: %v", i+1, err)
		}
	}

	hist, err := s.History(ctx, "a-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(hist))
	}
	for i, snap := range hist {
		if snap.Version != i+1 {
			t.Errorf("expected version %d at position %d, got %d", i+1, i, snap.Version)
		}
	}
}
