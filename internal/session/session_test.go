package session

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		d       Descriptor
		wantErr bool
	}{
		{"host with match", Descriptor{Role: RoleHost, MatchID: "m1"}, false},
		{"host without match", Descriptor{Role: RoleHost}, true},
		{"player with ids", Descriptor{Role: RolePlayer, MatchID: "m1", PlayerID: "p1"}, false},
		{"player without player id", Descriptor{Role: RolePlayer, MatchID: "m1"}, true},
		{"player without match id", Descriptor{Role: RolePlayer, PlayerID: "p1"}, true},
		{"empty role", Descriptor{MatchID: "m1"}, true},
		{"unknown role", Descriptor{Role: Role("spectator"), MatchID: "m1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))

	want := Descriptor{
		Role:         RolePlayer,
		MatchID:      "m1",
		PlayerID:     "p1",
		PlayerName:   "ada",
		Pin:          "111222",
		PlayerAvatar: "cat",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))

	if _, err := s.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() with no file error = %v, want ErrNoSession", err)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))

	if err := s.Save(Descriptor{Role: RoleHost, MatchID: "m1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Load() after clear error = %v, want ErrNoSession", err)
	}

	// Clearing an absent session is not an error
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}
