package syncclient

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParticipantIDStableAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	first, err := NewDeviceStore(dir).ParticipantID()
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("expected a minted participant id")
	}

	second, err := NewDeviceStore(dir).ParticipantID()
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatalf("expected stable id, got %q then %q", first, second)
	}
}

func TestSessionRoundTripAndClear(t *testing.T) {
	store := NewDeviceStore(t.TempDir())

	if _, _, ok := store.LoadSession(); ok {
		t.Fatal("expected no persisted session on a fresh device")
	}

	if err := store.SaveSession("AB2CD3", true); err != nil {
		t.Fatal(err)
	}
	code, isHost, ok := store.LoadSession()
	if !ok || code != "AB2CD3" || !isHost {
		t.Fatalf("unexpected session: code=%q isHost=%v ok=%v", code, isHost, ok)
	}

	if err := store.ClearSession(); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := store.LoadSession(); ok {
		t.Fatal("expected session cleared")
	}
}

func TestClearKeepsParticipantID(t *testing.T) {
	store := NewDeviceStore(t.TempDir())
	id, err := store.ParticipantID()
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSession("AB2CD3", false); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearSession(); err != nil {
		t.Fatal(err)
	}
	again, err := store.ParticipantID()
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatalf("clearing the session must not remint the identity: %q -> %q", id, again)
	}
}

func TestMangledStateFileTreatedAsFresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "device.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewDeviceStore(dir)
	if _, _, ok := store.LoadSession(); ok {
		t.Fatal("expected mangled file to read as empty state")
	}
	if _, err := store.ParticipantID(); err != nil {
		t.Fatal(err)
	}
}
