package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
)

// DefaultRecentLimit caps Recent when no limit is given.
const DefaultRecentLimit = 50

// RecognitionRepository keeps the history of classified windows. It is also
// a pipeline sink.
type RecognitionRepository struct {
	db *sql.DB
}

// Recognitions returns the recognition repository for this store.
func (s *Store) Recognitions() *RecognitionRepository {
	return &RecognitionRepository{db: s.db}
}

// Publish records ev. It implements app.Sink.
func (r *RecognitionRepository) Publish(ctx context.Context, ev app.Event) error {
	distances, err := json.Marshal(ev.Distances)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO recognitions (id, set_name, recognized, label, name, score, window_length, distances, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Set, ev.Recognized, int(ev.Label), ev.Name, ev.Score, ev.WindowLength, string(distances), ev.Time,
	)
	return err
}

// Recent returns up to limit events, newest first.
func (r *RecognitionRepository) Recent(limit int) ([]app.Event, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := r.db.Query(
		`SELECT id, set_name, recognized, label, name, score, window_length, distances, created_at
		 FROM recognitions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []app.Event{}
	for rows.Next() {
		var (
			ev         app.Event
			recognized int
			label      int
			distances  string
			createdAt  time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Set, &recognized, &label, &ev.Name, &ev.Score, &ev.WindowLength,
			&distances, &createdAt); err != nil {
			return nil, err
		}
		ev.Recognized = recognized != 0
		ev.Label = gesture.Label(label)
		ev.Time = createdAt
		if err := json.Unmarshal([]byte(distances), &ev.Distances); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Counts returns how many stored events were recognized and how many were not.
func (r *RecognitionRepository) Counts() (recognized, noMatch int, err error) {
	err = r.db.QueryRow(
		`SELECT COALESCE(SUM(recognized), 0), COALESCE(SUM(1 - recognized), 0) FROM recognitions`,
	).Scan(&recognized, &noMatch)
	return recognized, noMatch, err
}

// Prune deletes events older than before and returns how many were removed.
func (r *RecognitionRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM recognitions WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
