package sessions

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile(t *testing.T) {
	s := NewStoreWithPath(filepath.Join(t.TempDir(), "sessions.json"))
	state, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(state.Sessions) != 0 {
		t.Errorf("expected empty state, got %+v", state.Sessions)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewStoreWithPath(path)
	state, err := s.Load()
	if err != nil {
		t.Fatalf("corrupt file should yield empty state, got error: %v", err)
	}
	if len(state.Sessions) != 0 {
		t.Errorf("expected empty state, got %+v", state.Sessions)
	}
}

func TestUpdate_RoundTrip(t *testing.T) {
	s := NewStoreWithPath(filepath.Join(t.TempDir(), "sessions.json"))

	now := time.Now().Truncate(time.Second)
	err := s.Update(func(state *State) error {
		state.Sessions["research"] = &Mapping{
			SessionID: "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			CreatedAt: now,
			LastTurn:  now,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	mp, ok := state.Sessions["research"]
	if !ok {
		t.Fatal("expected mapping persisted")
	}
	if mp.SessionID != "a1b2c3d4-e5f6-7890-abcd-ef1234567890" {
		t.Errorf("unexpected sessionId: %q", mp.SessionID)
	}
	if !mp.CreatedAt.Equal(now) {
		t.Errorf("createdAt not preserved: %v vs %v", mp.CreatedAt, now)
	}
}

func TestUpdate_ErrorAborts(t *testing.T) {
	s := NewStoreWithPath(filepath.Join(t.TempDir(), "sessions.json"))

	if err := s.Update(func(state *State) error {
		state.Sessions["a"] = &Mapping{SessionID: "x"}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	wantErr := s.Update(func(state *State) error {
		state.Sessions["b"] = &Mapping{SessionID: "y"}
		return os.ErrInvalid
	})
	if wantErr == nil {
		t.Fatal("expected error from Update")
	}

	state, _ := s.Load()
	if _, ok := state.Sessions["b"]; ok {
		t.Error("aborted update should not persist")
	}
	if _, ok := state.Sessions["a"]; !ok {
		t.Error("prior state lost")
	}
}

func TestUpdate_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	s := NewStoreWithPath(filepath.Join(dir, "sessions.json"))
	if err := s.Update(func(state *State) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sessions.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after atomic rename")
	}
}

func TestProjectHash_Stable(t *testing.T) {
	a := ProjectHash("/some/project")
	b := ProjectHash("/some/project")
	if a != b {
		t.Error("project hash not deterministic")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if ProjectHash("/other") == a {
		t.Error("different paths should hash differently")
	}
}
