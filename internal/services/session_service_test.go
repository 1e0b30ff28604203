package services

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"sync-party/internal/repos"

	_ "modernc.org/sqlite"
)

func setupTestService(t *testing.T) *SessionService {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE sync_sessions (
			code TEXT PRIMARY KEY,
			host_id TEXT NOT NULL,
			current_music_id TEXT,
			is_playing INTEGER NOT NULL DEFAULT 0,
			playback_time REAL NOT NULL DEFAULT 0,
			last_update DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
	return NewSessionService(repos.NewSessionRepo(db))
}

func TestCreateCodeShape(t *testing.T) {
	svc := setupTestService(t)

	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sess.Code) != codeLength {
		t.Fatalf("expected %d-char code, got %q", codeLength, sess.Code)
	}
	for _, c := range sess.Code {
		if !strings.ContainsRune(codeAlphabet, c) {
			t.Fatalf("code %q contains %q outside the alphabet", sess.Code, c)
		}
	}
	if sess.IsPlaying || sess.CurrentTime != 0 || sess.CurrentMusicID != nil {
		t.Fatalf("expected empty initial playback state, got %+v", sess)
	}
	if got := sess.ExpiresAt.Sub(sess.LastUpdate); got != sessionTTL {
		t.Fatalf("expected expiry %v after creation, got %v", sessionTTL, got)
	}
}

func TestCreateRetriesOnCollision(t *testing.T) {
	svc := setupTestService(t)

	first, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	// Collide once, then hand out a fresh code.
	calls := 0
	svc.genCode = func() string {
		calls++
		if calls == 1 {
			return first.Code
		}
		return "ZZZZZ" + string(codeAlphabet[calls%len(codeAlphabet)])
	}

	second, err := svc.Create("host-2")
	if err != nil {
		t.Fatal(err)
	}
	if second.Code == first.Code {
		t.Fatalf("expected a distinct code after collision, got %q twice", first.Code)
	}
	if calls != 2 {
		t.Fatalf("expected 2 generator calls, got %d", calls)
	}
}

func TestCreateGivesUpAfterRetryBound(t *testing.T) {
	svc := setupTestService(t)

	first, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	svc.genCode = func() string {
		calls++
		return first.Code
	}
	if _, err := svc.Create("host-2"); err == nil {
		t.Fatal("expected create to fail when every candidate collides")
	}
	if calls != createAttempts {
		t.Fatalf("expected %d generator calls, got %d", createAttempts, calls)
	}
}

func TestCreateReclaimsExpiredCode(t *testing.T) {
	svc := setupTestService(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	first, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return base.Add(sessionTTL + time.Minute) }
	svc.genCode = func() string { return first.Code }
	second, err := svc.Create("host-2")
	if err != nil {
		t.Fatal(err)
	}
	if second.Code != first.Code {
		t.Fatalf("expected expired code to be reusable, got %q", second.Code)
	}
	if second.HostID != "host-2" {
		t.Fatalf("expected new host, got %q", second.HostID)
	}
}

func TestLazyExpiry(t *testing.T) {
	svc := setupTestService(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return base.Add(sessionTTL + time.Second) }
	if _, err := svc.Get(sess.Code); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// The expired read also deleted the row.
	if _, err := svc.Get(sess.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after lazy delete, got %v", err)
	}
}

func TestUpdateExpiredSession(t *testing.T) {
	svc := setupTestService(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	svc.now = func() time.Time { return base.Add(sessionTTL + time.Second) }
	playing := true
	if _, err := svc.Update(sess.Code, UpdateInput{IsPlaying: &playing}); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// The lazy delete must survive the failed update: the row has to be
	// gone, not merely hidden behind the expiry check.
	var count int
	if err := svc.repo.DB().QueryRow(
		`SELECT COUNT(*) FROM sync_sessions WHERE code = ?`, sess.Code,
	).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected expired row deleted, found %d rows", count)
	}
	if _, err := svc.Get(sess.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after lazy delete, got %v", err)
	}
}

func TestUpdatePartialMergePreservesFields(t *testing.T) {
	svc := setupTestService(t)

	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	musicID := "track-a"
	playing := true
	pos := 10.0
	before, err := svc.Update(sess.Code, UpdateInput{CurrentMusicID: &musicID, IsPlaying: &playing, CurrentTime: &pos})
	if err != nil {
		t.Fatal(err)
	}

	newPos := 42.0
	after, err := svc.Update(sess.Code, UpdateInput{CurrentTime: &newPos})
	if err != nil {
		t.Fatal(err)
	}
	if after.CurrentMusicID == nil || *after.CurrentMusicID != "track-a" {
		t.Fatalf("expected currentMusicId preserved, got %v", after.CurrentMusicID)
	}
	if !after.IsPlaying {
		t.Fatal("expected isPlaying preserved")
	}
	if after.CurrentTime != 42.0 {
		t.Fatalf("expected currentTime 42, got %v", after.CurrentTime)
	}
	if !after.LastUpdate.After(before.LastUpdate) {
		t.Fatalf("expected lastUpdate to advance: %v -> %v", before.LastUpdate, after.LastUpdate)
	}
}

func TestLastUpdateStrictlyIncreasesOnFrozenClock(t *testing.T) {
	svc := setupTestService(t)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}

	pos := 1.0
	u1, err := svc.Update(sess.Code, UpdateInput{CurrentTime: &pos})
	if err != nil {
		t.Fatal(err)
	}
	pos = 2.0
	u2, err := svc.Update(sess.Code, UpdateInput{CurrentTime: &pos})
	if err != nil {
		t.Fatal(err)
	}
	if !u1.LastUpdate.After(sess.LastUpdate) || !u2.LastUpdate.After(u1.LastUpdate) {
		t.Fatalf("expected strictly increasing lastUpdate: %v, %v, %v", sess.LastUpdate, u1.LastUpdate, u2.LastUpdate)
	}
}

func TestCodeIsCaseInsensitive(t *testing.T) {
	svc := setupTestService(t)

	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Get(strings.ToLower(sess.Code))
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != sess.Code {
		t.Fatalf("expected %q, got %q", sess.Code, got.Code)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := setupTestService(t)

	sess, err := svc.Create("host-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(sess.Code); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(sess.Code); err != nil {
		t.Fatalf("expected second delete to be a no-op, got %v", err)
	}
	if _, err := svc.Get(sess.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
