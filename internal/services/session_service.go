package services

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sync-party/internal/models"
	"sync-party/internal/repos"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrExpired      = errors.New("session expired")
	ErrInvalidInput = errors.New("invalid input")
)

// Alphabet drops 0/O and 1/I so codes survive being read aloud.
const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	createAttempts = 10
	sessionTTL     = 24 * time.Hour
)

// UpdateInput is a sparse merge: nil fields keep their stored value.
type UpdateInput struct {
	CurrentMusicID *string  `json:"currentMusicId"`
	IsPlaying      *bool    `json:"isPlaying"`
	CurrentTime    *float64 `json:"currentTime"`
}

type SessionService struct {
	repo *repos.SessionRepo

	now     func() time.Time
	genCode func() string
}

func NewSessionService(repo *repos.SessionRepo) *SessionService {
	s := &SessionService{repo: repo, now: time.Now}
	s.genCode = randomCode
	return s
}

func (s *SessionService) Create(hostID string) (*models.SyncSession, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return nil, fmt.Errorf("%w: hostId is required", ErrInvalidInput)
	}

	var out *models.SyncSession
	err := s.repo.WithTx(func(tx *sql.Tx) error {
		var code string
		for i := 0; i < createAttempts; i++ {
			candidate := s.genCode()
			existing, err := s.repo.GetTx(tx, candidate)
			if err != nil && !errors.Is(err, repos.ErrNotFound) {
				return err
			}
			if existing == nil {
				code = candidate
				break
			}
			if s.now().After(existing.ExpiresAt) {
				if err := s.repo.DeleteTx(tx, candidate); err != nil {
					return err
				}
				code = candidate
				break
			}
		}
		if code == "" {
			return fmt.Errorf("could not allocate a unique session code")
		}

		now := s.now().UTC()
		sess := &models.SyncSession{
			Code:       code,
			HostID:     hostID,
			IsPlaying:  false,
			LastUpdate: now,
			ExpiresAt:  now.Add(sessionTTL),
		}
		if err := s.repo.InsertTx(tx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionService) Get(code string) (*models.SyncSession, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	sess, err := s.repo.Get(code)
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(sess.ExpiresAt) {
		// Lazy expiry: the first read past the deadline removes the row.
		if err := s.repo.Delete(code); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return sess, nil
}

func (s *SessionService) Update(code string, in UpdateInput) (*models.SyncSession, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	var (
		out     *models.SyncSession
		expired bool
	)
	err = s.repo.WithTx(func(tx *sql.Tx) error {
		sess, err := s.repo.GetTx(tx, code)
		if errors.Is(err, repos.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if s.now().After(sess.ExpiresAt) {
			// Lazy expiry: the delete must commit, so signal the outcome
			// through a flag instead of failing the transaction.
			expired = true
			return s.repo.DeleteTx(tx, code)
		}

		if in.CurrentMusicID != nil {
			sess.CurrentMusicID = in.CurrentMusicID
		}
		if in.IsPlaying != nil {
			sess.IsPlaying = *in.IsPlaying
		}
		if in.CurrentTime != nil {
			sess.CurrentTime = *in.CurrentTime
		}

		// lastUpdate must strictly increase even when the clock has not
		// moved past the previous mutation's granularity.
		now := s.now().UTC()
		if !now.After(sess.LastUpdate) {
			now = sess.LastUpdate.Add(time.Microsecond)
		}
		sess.LastUpdate = now

		if err := s.repo.UpdateTx(tx, sess); err != nil {
			return err
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrExpired
	}
	return out, nil
}

func (s *SessionService) Delete(code string) error {
	code, err := normalizeCode(code)
	if err != nil {
		return err
	}
	return s.repo.Delete(code)
}

func normalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	return code, nil
}

func randomCode() string {
	b := make([]byte, codeLength)
	_, _ = rand.Read(b)
	out := make([]byte, codeLength)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out)
}
