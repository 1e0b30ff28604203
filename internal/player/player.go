package player

import (
	"sync"
	"time"

	"sync-party/internal/models"
)

// Snapshot is the local playback state the sync protocol cares about.
type Snapshot struct {
	TrackID   string
	IsPlaying bool
	Position  float64
}

// Player is the local playback surface a sync manager drives. Constructed
// once per process and injected, never read from ambient globals.
type Player interface {
	Snapshot() Snapshot
	Play(t models.Track)
	SetPlaying(playing bool)
	Seek(seconds float64)
	Tracks() []models.Track
	SetTracks(tracks []models.Track)
}

// LocalPlayer models a single audio transport: while playing, the position
// advances with the wall clock from the last fixed point.
type LocalPlayer struct {
	mu sync.Mutex

	now      func() time.Time
	tracks   []models.Track
	current  *models.Track
	playing  bool
	position float64
	mark     time.Time

	onChange func()
}

func NewLocalPlayer() *LocalPlayer {
	return &LocalPlayer{now: time.Now}
}

// SetOnChange registers a callback fired after every local transport change.
// A host's sync manager hangs its push-on-change here.
func (p *LocalPlayer) SetOnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *LocalPlayer) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{IsPlaying: p.playing, Position: p.positionLocked()}
	if p.current != nil {
		snap.TrackID = p.current.ID
	}
	return snap
}

func (p *LocalPlayer) Play(t models.Track) {
	p.mu.Lock()
	track := t
	p.current = &track
	p.position = 0
	p.playing = true
	p.mark = p.now()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *LocalPlayer) SetPlaying(playing bool) {
	p.mu.Lock()
	if p.current == nil || p.playing == playing {
		p.mu.Unlock()
		return
	}
	p.position = p.positionLocked()
	p.playing = playing
	p.mark = p.now()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *LocalPlayer) Seek(seconds float64) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	p.position = seconds
	p.mark = p.now()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *LocalPlayer) Tracks() []models.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

func (p *LocalPlayer) SetTracks(tracks []models.Track) {
	p.mu.Lock()
	p.tracks = make([]models.Track, len(tracks))
	copy(p.tracks, tracks)
	p.mu.Unlock()
}

func (p *LocalPlayer) positionLocked() float64 {
	if !p.playing {
		return p.position
	}
	return p.position + p.now().Sub(p.mark).Seconds()
}
