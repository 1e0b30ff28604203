package player

import (
	"testing"
	"time"

	"sync-party/internal/models"
)

func TestPositionAdvancesWhilePlaying(t *testing.T) {
	p := NewLocalPlayer()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Play(models.Track{ID: "t1", Title: "one"})
	clock = clock.Add(10 * time.Second)
	if got := p.Snapshot().Position; got != 10 {
		t.Fatalf("expected position 10, got %v", got)
	}

	p.SetPlaying(false)
	clock = clock.Add(30 * time.Second)
	if got := p.Snapshot().Position; got != 10 {
		t.Fatalf("expected position frozen at 10 while paused, got %v", got)
	}

	p.SetPlaying(true)
	clock = clock.Add(5 * time.Second)
	if got := p.Snapshot().Position; got != 15 {
		t.Fatalf("expected position 15 after resume, got %v", got)
	}
}

func TestSeekClampsAndRebases(t *testing.T) {
	p := NewLocalPlayer()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	p.Play(models.Track{ID: "t1"})
	p.Seek(-3)
	if got := p.Snapshot().Position; got != 0 {
		t.Fatalf("expected seek clamp to 0, got %v", got)
	}
	p.Seek(90)
	clock = clock.Add(2 * time.Second)
	if got := p.Snapshot().Position; got != 92 {
		t.Fatalf("expected 92 after seek and 2s of playback, got %v", got)
	}
}

func TestTransportNoopsWithoutTrack(t *testing.T) {
	p := NewLocalPlayer()
	fired := 0
	p.SetOnChange(func() { fired++ })

	p.SetPlaying(true)
	p.Seek(10)
	if fired != 0 {
		t.Fatalf("expected no change callbacks without a track, got %d", fired)
	}
	snap := p.Snapshot()
	if snap.TrackID != "" || snap.IsPlaying || snap.Position != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestOnChangeFiresOnTransportChanges(t *testing.T) {
	p := NewLocalPlayer()
	fired := 0
	p.SetOnChange(func() { fired++ })

	p.Play(models.Track{ID: "t1"})
	p.SetPlaying(false)
	p.Seek(30)
	// Redundant transport state is not a change.
	p.SetPlaying(false)
	if fired != 3 {
		t.Fatalf("expected 3 callbacks, got %d", fired)
	}
}
