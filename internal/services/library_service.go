package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sync-party/internal/models"
	"sync-party/internal/repos"
)

var ErrTrackNotFound = errors.New("track not found")

type AddTrackInput struct {
	Title    string `json:"title"`
	AudioURL string `json:"audioUrl"`
}

// LibraryService is the read surface guests hit when a shared track is not
// yet in their local library.
type LibraryService struct {
	repo *repos.TrackRepo

	now func() time.Time
}

func NewLibraryService(repo *repos.TrackRepo) *LibraryService {
	return &LibraryService{repo: repo, now: time.Now}
}

func (s *LibraryService) List() ([]models.Track, error) {
	return s.repo.List()
}

func (s *LibraryService) Get(id string) (*models.Track, error) {
	t, err := s.repo.GetByID(strings.TrimSpace(id))
	if errors.Is(err, repos.ErrNotFound) {
		return nil, ErrTrackNotFound
	}
	return t, err
}

func (s *LibraryService) Add(in AddTrackInput) (*models.Track, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	t := &models.Track{
		ID:        uuid.NewString(),
		Title:     title,
		AudioURL:  strings.TrimSpace(in.AudioURL),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(t); err != nil {
		return nil, err
	}
	return t, nil
}
