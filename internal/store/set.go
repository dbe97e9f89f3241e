package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/wandsign/internal/gesture"
)

// GestureSet is a named, versioned template library stored in the database.
type GestureSet struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Version            int       `json:"version"`
	SamplesPerTemplate int       `json:"samples_per_template"`
	Description        string    `json:"description,omitempty"`
	Labels             int       `json:"labels"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SetRepository stores gesture sets with their templates and bounds.
type SetRepository struct {
	db *sql.DB
}

// Sets returns the gesture set repository for this store.
func (s *Store) Sets() *SetRepository {
	return &SetRepository{db: s.db}
}

// Save stores lib under name. Saving over an existing name replaces its
// templates and bounds and bumps the version; hook bindings are kept.
func (r *SetRepository) Save(name, description string, lib *gesture.Library) (*GestureSet, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	set := &GestureSet{
		Name:               name,
		Version:            1,
		SamplesPerTemplate: lib.SamplesPerTemplate(),
		Description:        description,
		Labels:             lib.Len(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = tx.QueryRow(`SELECT id, version, created_at FROM gesture_sets WHERE name = ?`, name).
		Scan(&set.ID, &set.Version, &set.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		set.ID = uuid.NewString()
		_, err = tx.Exec(
			`INSERT INTO gesture_sets (id, name, version, samples_per_template, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			set.ID, set.Name, set.Version, set.SamplesPerTemplate, set.Description, set.CreatedAt, set.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		set.Version++
		_, err = tx.Exec(
			`UPDATE gesture_sets SET version = ?, samples_per_template = ?, description = ?, updated_at = ?
			 WHERE id = ?`,
			set.Version, set.SamplesPerTemplate, set.Description, set.UpdatedAt, set.ID,
		)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM gestures WHERE set_id = ?`, set.ID); err != nil {
			return nil, err
		}
	}

	if err := insertTemplates(tx, set.ID, lib); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return set, nil
}

func insertTemplates(tx *sql.Tx, setID string, lib *gesture.Library) error {
	gestureStmt, err := tx.Prepare(`INSERT INTO gestures (set_id, label, name, bound_x, bound_y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer gestureStmt.Close()

	sampleStmt, err := tx.Prepare(`INSERT INTO gesture_samples (set_id, label, sample_index, axis, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sampleStmt.Close()

	for _, label := range lib.Labels() {
		t, err := lib.TemplatesFor(label)
		if err != nil {
			return err
		}
		b, err := lib.AcceptanceBoundsFor(label)
		if err != nil {
			return err
		}

		if _, err := gestureStmt.Exec(setID, int(label), t.Name, b.X, b.Y); err != nil {
			return err
		}

		for axis, seqs := range map[string][]gesture.Sequence{"x": t.X, "y": t.Y} {
			for i, seq := range seqs {
				data, err := json.Marshal([]float64(seq))
				if err != nil {
					return err
				}
				if _, err := sampleStmt.Exec(setID, int(label), i, axis, string(data)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

const setColumns = `s.id, s.name, s.version, s.samples_per_template, s.description, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM gestures g WHERE g.set_id = s.id)`

func scanSet(row interface{ Scan(...any) error }) (*GestureSet, error) {
	set := &GestureSet{}
	err := row.Scan(&set.ID, &set.Name, &set.Version, &set.SamplesPerTemplate, &set.Description,
		&set.CreatedAt, &set.UpdatedAt, &set.Labels)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// GetByID retrieves a set by its ID.
func (r *SetRepository) GetByID(id string) (*GestureSet, error) {
	set, err := scanSet(r.db.QueryRow(`SELECT `+setColumns+` FROM gesture_sets s WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return set, err
}

// GetByName retrieves a set by its name.
func (r *SetRepository) GetByName(name string) (*GestureSet, error) {
	set, err := scanSet(r.db.QueryRow(`SELECT `+setColumns+` FROM gesture_sets s WHERE s.name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return set, err
}

// List retrieves all sets ordered by name.
func (r *SetRepository) List() ([]*GestureSet, error) {
	rows, err := r.db.Query(`SELECT ` + setColumns + ` FROM gesture_sets s ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*GestureSet
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Delete removes a set and everything bound to it.
func (r *SetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM gesture_sets WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Templates returns a set's templates in label order and its bounds.
func (r *SetRepository) Templates(setID string) ([]gesture.Template, map[gesture.Label]gesture.Bounds, error) {
	rows, err := r.db.Query(
		`SELECT label, name, bound_x, bound_y FROM gestures WHERE set_id = ? ORDER BY label`, setID)
	if err != nil {
		return nil, nil, err
	}

	var templates []gesture.Template
	index := make(map[gesture.Label]int)
	bounds := make(map[gesture.Label]gesture.Bounds)
	for rows.Next() {
		var (
			label int
			t     gesture.Template
			b     gesture.Bounds
		)
		if err := rows.Scan(&label, &t.Name, &b.X, &b.Y); err != nil {
			rows.Close()
			return nil, nil, err
		}
		t.Label = gesture.Label(label)
		index[t.Label] = len(templates)
		templates = append(templates, t)
		bounds[t.Label] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(templates) == 0 {
		return nil, nil, ErrNotFound
	}

	samples, err := r.db.Query(
		`SELECT label, sample_index, axis, data FROM gesture_samples
		 WHERE set_id = ? ORDER BY label, axis, sample_index`, setID)
	if err != nil {
		return nil, nil, err
	}
	defer samples.Close()

	for samples.Next() {
		var (
			label, i int
			axis     string
			data     string
		)
		if err := samples.Scan(&label, &i, &axis, &data); err != nil {
			return nil, nil, err
		}

		var seq gesture.Sequence
		if err := json.Unmarshal([]byte(data), &seq); err != nil {
			return nil, nil, fmt.Errorf("label %d sample %d axis %s: %w", label, i, axis, err)
		}

		t := &templates[index[gesture.Label(label)]]
		switch axis {
		case "x":
			t.X = append(t.X, seq)
		case "y":
			t.Y = append(t.Y, seq)
		}
	}
	if err := samples.Err(); err != nil {
		return nil, nil, err
	}
	return templates, bounds, nil
}

// LoadLibrary rebuilds and validates the library stored under name.
func (r *SetRepository) LoadLibrary(name string, allowEmpty bool) (*gesture.Library, *GestureSet, error) {
	set, err := r.GetByName(name)
	if err != nil {
		return nil, nil, err
	}
	templates, bounds, err := r.Templates(set.ID)
	if err != nil {
		return nil, nil, err
	}

	lib, err := gesture.NewLibrary(gesture.LibraryConfig{
		SamplesPerTemplate: set.SamplesPerTemplate,
		AllowEmpty:         allowEmpty,
	}, templates, bounds)
	if err != nil {
		return nil, nil, err
	}
	return lib, set, nil
}
