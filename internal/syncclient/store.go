package syncclient

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DeviceStore persists per-device client state: a stable participant
// identifier minted once, plus the last room so a restart can resume the
// same role without re-entering the code. It is identity, not a credential.
type DeviceStore struct {
	path string
}

type deviceState struct {
	ParticipantID string `json:"participantId"`
	SessionCode   string `json:"sessionCode,omitempty"`
	IsHost        bool   `json:"isHost,omitempty"`
}

func NewDeviceStore(dir string) *DeviceStore {
	return &DeviceStore{path: filepath.Join(dir, "device.json")}
}

// ParticipantID returns the device identity, minting and persisting one on
// first use.
func (s *DeviceStore) ParticipantID() (string, error) {
	st, err := s.load()
	if err != nil {
		return "", err
	}
	if st.ParticipantID != "" {
		return st.ParticipantID, nil
	}
	st.ParticipantID = uuid.NewString()
	if err := s.save(st); err != nil {
		return "", err
	}
	return st.ParticipantID, nil
}

func (s *DeviceStore) SaveSession(code string, isHost bool) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.SessionCode = code
	st.IsHost = isHost
	return s.save(st)
}

func (s *DeviceStore) LoadSession() (code string, isHost bool, ok bool) {
	st, err := s.load()
	if err != nil || st.SessionCode == "" {
		return "", false, false
	}
	return st.SessionCode, st.IsHost, true
}

func (s *DeviceStore) ClearSession() error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.SessionCode = ""
	st.IsHost = false
	return s.save(st)
}

func (s *DeviceStore) load() (deviceState, error) {
	var st deviceState
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		// A mangled state file is treated as a fresh device.
		return deviceState{}, nil
	}
	return st, nil
}

func (s *DeviceStore) save(st deviceState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}
