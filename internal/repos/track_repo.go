package repos

import (
	"database/sql"
	"errors"

	"sync-party/internal/models"
)

type TrackRepo struct {
	db *sql.DB
}

func NewTrackRepo(db *sql.DB) *TrackRepo {
	return &TrackRepo{db: db}
}

func (r *TrackRepo) List() ([]models.Track, error) {
	rows, err := r.db.Query(`
		SELECT id, title, audio_url, created_at
		FROM tracks
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := make([]models.Track, 0)
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.AudioURL, &t.CreatedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *TrackRepo) GetByID(id string) (*models.Track, error) {
	row := r.db.QueryRow(`
		SELECT id, title, audio_url, created_at
		FROM tracks WHERE id = ?
	`, id)
	var t models.Track
	if err := row.Scan(&t.ID, &t.Title, &t.AudioURL, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TrackRepo) Insert(t *models.Track) error {
	_, err := r.db.Exec(`
		INSERT INTO tracks (id, title, audio_url, created_at)
		VALUES (?, ?, ?, ?)
	`, t.ID, t.Title, t.AudioURL, t.CreatedAt.UTC())
	return err
}
