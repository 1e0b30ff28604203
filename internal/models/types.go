package models

import "time"

// SyncSession is one shared-listening room. The host's playback state is
// authoritative; guests adopt it through polling.
type SyncSession struct {
	Code           string    `json:"code"`
	HostID         string    `json:"hostId"`
	CurrentMusicID *string   `json:"currentMusicId"`
	IsPlaying      bool      `json:"isPlaying"`
	CurrentTime    float64   `json:"currentTime"`
	LastUpdate     time.Time `json:"-"`
	ExpiresAt      time.Time `json:"-"`
}

// SessionSnapshot is the wire form of a session. LastUpdate is serialized as
// an opaque token; clients compare it for equality only.
type SessionSnapshot struct {
	Code           string  `json:"code"`
	HostID         string  `json:"hostId"`
	CurrentMusicID *string `json:"currentMusicId"`
	IsPlaying      bool    `json:"isPlaying"`
	CurrentTime    float64 `json:"currentTime"`
	LastUpdate     string  `json:"lastUpdate"`
}

func (s *SyncSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		Code:           s.Code,
		HostID:         s.HostID,
		CurrentMusicID: s.CurrentMusicID,
		IsPlaying:      s.IsPlaying,
		CurrentTime:    s.CurrentTime,
		LastUpdate:     s.LastUpdate.UTC().Format(time.RFC3339Nano),
	}
}

// Track is the minimal library record the sync protocol needs: an identifier
// plus enough metadata to start playback.
type Track struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AudioURL  string    `json:"audioUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
