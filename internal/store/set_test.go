package store

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/wandsign/internal/gesture"
)

func testLibrary(t *testing.T, boundX float64) *gesture.Library {
	t.Helper()

	lib, err := gesture.NewLibrary(gesture.LibraryConfig{SamplesPerTemplate: 2},
		[]gesture.Template{
			{Label: 0, Name: "fire", X: []gesture.Sequence{{0, 1, 2}, {0, 1, 3}}, Y: []gesture.Sequence{{0, 0}, {1, 0}}},
			{Label: 3, Name: "ice", X: []gesture.Sequence{{5, 4}, {5, 5}}, Y: []gesture.Sequence{{-1, -2, -3}, {-1, -1}}},
		},
		map[gesture.Label]gesture.Bounds{0: {X: boundX, Y: 2}, 3: {X: 4, Y: 5}},
	)
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}
	return lib
}

func TestSetRepository_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sets()

	lib := testLibrary(t, 1.5)
	set, err := repo.Save("wands", "two spells", lib)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if set.ID == "" || set.Version != 1 || set.Labels != 2 || set.SamplesPerTemplate != 2 {
		t.Errorf("unexpected set %+v", set)
	}

	loaded, got, err := repo.LoadLibrary("wands", false)
	if err != nil {
		t.Fatalf("LoadLibrary() error = %v", err)
	}
	if got.ID != set.ID || got.Description != "two spells" {
		t.Errorf("unexpected loaded set %+v", got)
	}

	for _, label := range lib.Labels() {
		want, _ := lib.TemplatesFor(label)
		have, err := loaded.TemplatesFor(label)
		if err != nil {
			t.Fatalf("TemplatesFor(%d) error = %v", label, err)
		}
		if diff := cmp.Diff(want, have); diff != "" {
			t.Errorf("label %d template mismatch (-want +got):\n%s", label, diff)
		}

		wb, _ := lib.AcceptanceBoundsFor(label)
		hb, _ := loaded.AcceptanceBoundsFor(label)
		if wb != hb {
			t.Errorf("label %d bounds %+v, want %+v", label, hb, wb)
		}
	}
}

func TestSetRepository_SaveReplacesAndBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sets()

	first, err := repo.Save("wands", "", testLibrary(t, 1))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	second, err := repo.Save("wands", "recalibrated", testLibrary(t, 9))
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected the same set ID, got %q and %q", first.ID, second.ID)
	}
	if second.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Version)
	}

	lib, _, err := repo.LoadLibrary("wands", false)
	if err != nil {
		t.Fatalf("LoadLibrary() error = %v", err)
	}
	b, _ := lib.AcceptanceBoundsFor(0)
	if b.X != 9 {
		t.Errorf("expected replaced bound 9, got %f", b.X)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM gesture_samples").Scan(&count); err != nil {
		t.Fatalf("count samples: %v", err)
	}
	// 2 labels x 2 samples x 2 axes.
	if count != 8 {
		t.Errorf("expected 8 sample rows after replace, got %d", count)
	}
}

func TestSetRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sets()

	for _, name := range []string{"zeta", "alpha"} {
		if _, err := repo.Save(name, "", testLibrary(t, 1)); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
	}

	sets, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sets) != 2 || sets[0].Name != "alpha" || sets[1].Name != "zeta" {
		t.Errorf("expected sets ordered by name, got %+v", sets)
	}
}

func TestSetRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sets()

	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if _, _, err := repo.LoadLibrary("missing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadLibrary() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestSetRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sets()

	set, err := repo.Save("wands", "", testLibrary(t, 1))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Actions().Create(&Action{SetID: set.ID, Label: 0, HookName: "keyboard", ActionName: "press", Enabled: true}); err != nil {
		t.Fatalf("Create action error = %v", err)
	}

	if err := repo.Delete(set.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	for _, table := range []string{"gestures", "gesture_samples", "actions"} {
		var count int
		if err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("expected %s to be empty after delete, got %d rows", table, count)
		}
	}
}
