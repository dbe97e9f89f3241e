package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
)

// Compile-time check that the repository is a pipeline sink.
var _ app.Sink = (*RecognitionRepository)(nil)

func TestRecognitionRepository_PublishAndRecent(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recognitions()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []app.Event{
		{ID: "a", Time: base, Set: "wands", Recognized: true, Label: 3, Name: "ice", Score: 1.5, WindowLength: 20,
			Distances: []gesture.LabelDistance{{Label: 3, AvgX: 1, AvgY: 2, Candidate: true}}},
		{ID: "b", Time: base.Add(time.Second), Set: "wands", WindowLength: 14},
		{ID: "c", Time: base.Add(2 * time.Second), Set: "wands", Recognized: true, Label: 0, Name: "fire", WindowLength: 18},
	}
	for _, ev := range events {
		if err := repo.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish(%s) error = %v", ev.ID, err)
		}
	}

	recent, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("expected newest two events c, b; got %+v", recent)
	}

	all, err := repo.Recent(0)
	if err != nil {
		t.Fatalf("Recent(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}

	first := all[2]
	if !first.Recognized || first.Name != "ice" || first.Label != 3 || len(first.Distances) != 1 || !first.Distances[0].Candidate {
		t.Errorf("event did not round-trip: %+v", first)
	}
	if !first.Time.Equal(base) {
		t.Errorf("time = %v, want %v", first.Time, base)
	}

	rec, noMatch, err := repo.Counts()
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if rec != 2 || noMatch != 1 {
		t.Errorf("Counts() = %d, %d; want 2, 1", rec, noMatch)
	}
}

func TestRecognitionRepository_EmptyRecent(t *testing.T) {
	repo := newTestStore(t).Recognitions()

	recent, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("expected an empty, non-nil slice, got %#v", recent)
	}
}

func TestRecognitionRepository_Prune(t *testing.T) {
	repo := newTestStore(t).Recognitions()
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.Publish(ctx, app.Event{ID: "old", Time: old, WindowLength: 11}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := repo.Publish(ctx, app.Event{ID: "new", Time: old.Add(48 * time.Hour), WindowLength: 11}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	n, err := repo.Prune(old.Add(24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned event, got %d", n)
	}
}

func TestRecognitionRepository_InfiniteDistances(t *testing.T) {
	s := newTestStore(t)
	repo := s.Recognitions()

	ev := app.Event{ID: "inf", Time: time.Now(), Set: "wands", Recognized: true, Label: 0, WindowLength: 4,
		Distances: []gesture.LabelDistance{
			{Label: 0, AvgX: 0.5, AvgY: 0.25, Candidate: true},
			{Label: 1, AvgX: math.Inf(1), AvgY: math.Inf(1)},
		}}
	if err := repo.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	recent, err := repo.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 1 || len(recent[0].Distances) != 2 {
		t.Fatalf("Recent() = %+v", recent)
	}
	d := recent[0].Distances
	if d[0].AvgX != 0.5 || d[0].AvgY != 0.25 || !math.IsInf(d[1].AvgX, 1) || !math.IsInf(d[1].AvgY, 1) {
		t.Errorf("distances did not round-trip: %+v", d)
	}
}
