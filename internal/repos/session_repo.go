package repos

import (
	"database/sql"
	"errors"

	"sync-party/internal/models"
)

var ErrNotFound = errors.New("not found")

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) DB() *sql.DB {
	return r.db
}

func (r *SessionRepo) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SessionRepo) Get(code string) (*models.SyncSession, error) {
	row := r.db.QueryRow(`
		SELECT code, host_id, current_music_id, is_playing, playback_time, last_update, expires_at
		FROM sync_sessions WHERE code = ?
	`, code)
	return scanSession(row)
}

func (r *SessionRepo) GetTx(tx *sql.Tx, code string) (*models.SyncSession, error) {
	row := tx.QueryRow(`
		SELECT code, host_id, current_music_id, is_playing, playback_time, last_update, expires_at
		FROM sync_sessions WHERE code = ?
	`, code)
	return scanSession(row)
}

func (r *SessionRepo) InsertTx(tx *sql.Tx, s *models.SyncSession) error {
	_, err := tx.Exec(`
		INSERT INTO sync_sessions (code, host_id, current_music_id, is_playing, playback_time, last_update, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.Code, s.HostID, nullableString(s.CurrentMusicID), s.IsPlaying, s.CurrentTime, s.LastUpdate.UTC(), s.ExpiresAt.UTC())
	return err
}

func (r *SessionRepo) UpdateTx(tx *sql.Tx, s *models.SyncSession) error {
	_, err := tx.Exec(`
		UPDATE sync_sessions
		SET current_music_id = ?, is_playing = ?, playback_time = ?, last_update = ?
		WHERE code = ?
	`, nullableString(s.CurrentMusicID), s.IsPlaying, s.CurrentTime, s.LastUpdate.UTC(), s.Code)
	return err
}

// Delete is idempotent: removing an absent row is not an error.
func (r *SessionRepo) Delete(code string) error {
	_, err := r.db.Exec(`DELETE FROM sync_sessions WHERE code = ?`, code)
	return err
}

func (r *SessionRepo) DeleteTx(tx *sql.Tx, code string) error {
	_, err := tx.Exec(`DELETE FROM sync_sessions WHERE code = ?`, code)
	return err
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.SyncSession, error) {
	var (
		s       models.SyncSession
		musicID sql.NullString
	)
	if err := row.Scan(&s.Code, &s.HostID, &musicID, &s.IsPlaying, &s.CurrentTime, &s.LastUpdate, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if musicID.Valid {
		s.CurrentMusicID = &musicID.String
	}
	return &s, nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
