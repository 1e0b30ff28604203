package syncclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"sync-party/internal/logging"
	"sync-party/internal/models"
	"sync-party/internal/player"
)

type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleGuest
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

const pushRequestTimeout = 10 * time.Second

// Config holds the protocol timings. Tests shrink or zero these; production
// uses DefaultConfig.
type Config struct {
	PollInterval      time.Duration
	PushDebounce      time.Duration
	HeartbeatInterval time.Duration
	SettleDelay       time.Duration
	DriftThreshold    float64
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      1500 * time.Millisecond,
		PushDebounce:      300 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		DriftThreshold:    3.0,
	}
}

// pendingSync is a reconciliation target deferred because the referenced
// track was not yet in the local library.
type pendingSync struct {
	MusicID   string
	Position  float64
	IsPlaying bool
}

// Manager runs one participant's side of a shared-listening room.
//
// The host's local playback is authoritative: it is pushed on change
// (debounced) and heartbeaten while playing. Everyone polls; guests
// reconcile remote snapshots into the local player. The single-writer rule
// is convention, not enforcement.
type Manager struct {
	mu sync.Mutex

	client *Client
	store  *DeviceStore
	player player.Player
	log    *logging.Logger
	cfg    Config
	now    func() time.Time

	state         State
	role          Role
	code          string
	participantID string

	// lastUpdate is the last processed change token; a poll returning the
	// same token is a no-op tick.
	lastUpdate string

	// suppressUntil opens when this client starts its own push: a poll
	// response landing inside the window is dropped so the client never
	// reconciles against its own just-written state.
	suppressUntil time.Time

	pending   *pendingSync
	lastError string

	cancel    context.CancelFunc
	pushTimer *time.Timer

	onEnded func(reason string)
}

func NewManager(client *Client, store *DeviceStore, p player.Player, log *logging.Logger, cfg Config) (*Manager, error) {
	id, err := store.ParticipantID()
	if err != nil {
		return nil, fmt.Errorf("load participant id: %w", err)
	}
	return &Manager{
		client:        client,
		store:         store,
		player:        p,
		log:           log,
		cfg:           cfg,
		now:           time.Now,
		participantID: id,
	}, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *Manager) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// LastError is the last user-facing message ("room not found", "room
// expired", ...); errors never leave the manager in a broken state.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

func (m *Manager) ParticipantID() string {
	return m.participantID
}

// SetOnSessionEnded registers a callback fired when the room disappears out
// from under this client (host teardown or expiry).
func (m *Manager) SetOnSessionEnded(fn func(reason string)) {
	m.mu.Lock()
	m.onEnded = fn
	m.mu.Unlock()
}

// CreateSession opens a new room with this participant as host.
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	if err := m.beginConnecting(); err != nil {
		return "", err
	}
	resp, err := m.client.CreateSession(ctx, m.participantID)
	if err != nil {
		m.failConnecting("could not create room")
		return "", err
	}
	m.mu.Lock()
	m.state = StateConnected
	m.role = RoleHost
	m.code = resp.Code
	m.lastUpdate = ""
	m.lastError = ""
	m.mu.Unlock()
	if err := m.store.SaveSession(resp.Code, true); err != nil {
		m.log.Warnf("persist session: %v", err)
	}
	m.startLoops()
	m.log.Infof("hosting room %s", resp.Code)
	return resp.Code, nil
}

// JoinSession enters an existing room. Role is resolved by comparing the
// stored hostId against this device's participant id, so a host rejoining
// their own room keeps authority. The returned snapshot is reconciled
// immediately so a guest does not wait for the first poll tick.
func (m *Manager) JoinSession(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := m.beginConnecting(); err != nil {
		return err
	}
	st, err := m.client.GetSession(ctx, code)
	if err != nil {
		m.failConnecting(joinErrorMessage(err))
		return err
	}

	role := RoleGuest
	if st.HostID == m.participantID {
		role = RoleHost
	}
	m.mu.Lock()
	m.state = StateConnected
	m.role = role
	m.code = st.Code
	m.lastUpdate = st.LastUpdate
	m.lastError = ""
	m.mu.Unlock()
	if err := m.store.SaveSession(st.Code, role == RoleHost); err != nil {
		m.log.Warnf("persist session: %v", err)
	}
	if role == RoleGuest {
		m.reconcile(ctx, st)
	}
	m.startLoops()
	m.log.Infof("joined room %s as %s", st.Code, role)
	return nil
}

// Resume silently re-enters the room persisted on this device, if any. A
// stale record (room gone or expired) is cleared and resume reports false.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	code, _, ok := m.store.LoadSession()
	if !ok {
		return false, nil
	}
	err := m.JoinSession(ctx, code)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		_ = m.store.ClearSession()
		m.mu.Lock()
		m.lastError = ""
		m.mu.Unlock()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Leave tears the local connection down. A host also deletes the room,
// ending it for everyone.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return nil
	}
	code := m.code
	wasHost := m.role == RoleHost
	cancel := m.cancel
	m.resetLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasHost {
		if err := m.client.DeleteSession(ctx, code); err != nil {
			m.log.Warnf("delete room %s: %v", code, err)
		}
	}
	m.log.Infof("left room %s", code)
	return m.store.ClearSession()
}

// NotifyLocalChange schedules a debounced full-state push. Wire it as the
// local player's change callback; non-hosts ignore it.
func (m *Manager) NotifyLocalChange() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.role != RoleHost {
		return
	}
	if m.pushTimer != nil {
		m.pushTimer.Stop()
	}
	m.pushTimer = time.AfterFunc(m.cfg.PushDebounce, m.pushState)
}

// RefreshLibrary re-pulls the track list and retries any pending sync that
// was waiting for the shared track to become resolvable.
func (m *Manager) RefreshLibrary(ctx context.Context) error {
	tracks, err := m.client.ListTracks(ctx)
	if err != nil {
		return err
	}
	m.player.SetTracks(tracks)
	m.resolvePending()
	return nil
}

func (m *Manager) startLoops() {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	poll := time.NewTicker(m.cfg.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			m.pollOnce(ctx)
		case <-heartbeat.C:
			m.heartbeat(ctx)
		}
	}
}

// pollOnce is one tick of the poll loop. Network failures are swallowed: the
// next tick retries, which is all the backoff this interval needs.
func (m *Manager) pollOnce(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	code := m.code
	m.mu.Unlock()

	st, err := m.client.GetSession(ctx, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			m.endSession("room closed")
		case errors.Is(err, ErrExpired):
			m.endSession("room expired")
		default:
			m.log.Debugf("poll %s: %v", code, err)
		}
		return
	}

	m.mu.Lock()
	if m.state != StateConnected {
		// Response raced a teardown; nothing left to receive it.
		m.mu.Unlock()
		return
	}
	if m.now().Before(m.suppressUntil) {
		m.mu.Unlock()
		return
	}
	if st.LastUpdate == m.lastUpdate {
		m.mu.Unlock()
		return
	}
	m.lastUpdate = st.LastUpdate
	m.mu.Unlock()

	m.reconcile(ctx, st)
}

// reconcile adjusts local playback toward a remote snapshot. It is
// idempotent: applying the same snapshot twice mutates nothing.
func (m *Manager) reconcile(ctx context.Context, st *SessionState) {
	local := m.player.Snapshot()

	if st.CurrentMusicID != nil && *st.CurrentMusicID != local.TrackID {
		track, found := lo.Find(m.player.Tracks(), func(t models.Track) bool {
			return t.ID == *st.CurrentMusicID
		})
		if !found {
			// The room only carries a track reference; this library may not
			// have caught up yet. Park the target and refresh.
			m.mu.Lock()
			m.pending = &pendingSync{MusicID: *st.CurrentMusicID, Position: st.CurrentTime, IsPlaying: st.IsPlaying}
			m.mu.Unlock()
			if err := m.RefreshLibrary(ctx); err != nil {
				m.log.Warnf("library refresh: %v", err)
			}
			return
		}
		m.applyTrack(track, st.CurrentTime, st.IsPlaying)
		return
	}

	if local.TrackID == "" {
		return
	}
	if local.IsPlaying != st.IsPlaying {
		m.player.SetPlaying(st.IsPlaying)
	}
	// Sub-threshold drift is left alone; hard-seeking on every
	// timer-resolution wobble would stutter audibly.
	local = m.player.Snapshot()
	if math.Abs(st.CurrentTime-local.Position) > m.cfg.DriftThreshold {
		m.player.Seek(st.CurrentTime)
	}
}

func (m *Manager) applyTrack(track models.Track, position float64, playing bool) {
	m.player.Play(track)
	// Give the new media a moment to start loading before seeking.
	if m.cfg.SettleDelay > 0 {
		time.Sleep(m.cfg.SettleDelay)
	}
	m.player.Seek(position)
	if snap := m.player.Snapshot(); snap.IsPlaying != playing {
		m.player.SetPlaying(playing)
	}
}

func (m *Manager) resolvePending() {
	m.mu.Lock()
	p := m.pending
	m.mu.Unlock()
	if p == nil {
		return
	}
	track, found := lo.Find(m.player.Tracks(), func(t models.Track) bool {
		return t.ID == p.MusicID
	})
	if !found {
		return
	}
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	m.applyTrack(track, p.Position, p.IsPlaying)
}

// pushState writes the host's full local state to the room. Called from the
// debounce timer; also usable directly for an immediate flush.
func (m *Manager) pushState() {
	m.mu.Lock()
	if m.state != StateConnected || m.role != RoleHost {
		m.mu.Unlock()
		return
	}
	code := m.code
	// Open the self-echo window before the write leaves, wide enough to
	// cover any poll already in flight.
	m.suppressUntil = m.now().Add(m.cfg.PollInterval)
	m.mu.Unlock()

	snap := m.player.Snapshot()
	var musicID *string
	if snap.TrackID != "" {
		id := snap.TrackID
		musicID = &id
	}
	playing := snap.IsPlaying
	position := snap.Position

	ctx, cancelReq := context.WithTimeout(context.Background(), pushRequestTimeout)
	defer cancelReq()
	st, err := m.client.UpdateSession(ctx, UpdateRequest{
		Code:           code,
		CurrentMusicID: musicID,
		IsPlaying:      &playing,
		CurrentTime:    &position,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			m.endSession("room closed")
		case errors.Is(err, ErrExpired):
			m.endSession("room expired")
		default:
			m.log.Debugf("push %s: %v", code, err)
		}
		return
	}
	// Record our own write's token so the next poll is a no-op tick.
	m.mu.Lock()
	m.lastUpdate = st.LastUpdate
	m.mu.Unlock()
}

// heartbeat pushes just the playback offset while the host is playing, so a
// late joiner resolves an accurate position between discrete state changes.
func (m *Manager) heartbeat(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateConnected || m.role != RoleHost {
		m.mu.Unlock()
		return
	}
	code := m.code
	m.mu.Unlock()

	snap := m.player.Snapshot()
	if !snap.IsPlaying {
		return
	}

	m.mu.Lock()
	m.suppressUntil = m.now().Add(m.cfg.PollInterval)
	m.mu.Unlock()

	position := snap.Position
	st, err := m.client.UpdateSession(ctx, UpdateRequest{Code: code, CurrentTime: &position})
	if err != nil {
		m.log.Debugf("heartbeat %s: %v", code, err)
		return
	}
	m.mu.Lock()
	m.lastUpdate = st.LastUpdate
	m.mu.Unlock()
}

// endSession unwinds local state after the room vanished remotely. There is
// nothing to delete server-side.
func (m *Manager) endSession(reason string) {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	code := m.code
	cancel := m.cancel
	onEnded := m.onEnded
	m.resetLocked()
	m.lastError = reason
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = m.store.ClearSession()
	m.log.Infof("room %s ended: %s", code, reason)
	if onEnded != nil {
		onEnded(reason)
	}
}

func (m *Manager) beginConnecting() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDisconnected {
		return fmt.Errorf("already in a room")
	}
	m.state = StateConnecting
	m.lastError = ""
	return nil
}

func (m *Manager) failConnecting(msg string) {
	m.mu.Lock()
	m.state = StateDisconnected
	m.lastError = msg
	m.mu.Unlock()
}

func (m *Manager) resetLocked() {
	m.state = StateDisconnected
	m.role = RoleNone
	m.code = ""
	m.lastUpdate = ""
	m.suppressUntil = time.Time{}
	m.pending = nil
	m.lastError = ""
	m.cancel = nil
	if m.pushTimer != nil {
		m.pushTimer.Stop()
		m.pushTimer = nil
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "room not found"
	case errors.Is(err, ErrExpired):
		return "room expired"
	default:
		return "could not join room"
	}
}

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return "none"
	}
}
