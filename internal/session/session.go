// Package session persists the client-side session descriptor used to
// rehydrate a subscription after reconnect. The descriptor carries no
// authority over match state: the match and player records alone describe
// the current phase, so resuming is just re-subscribing.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Role identifies which side of the match a session drives.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
	RoleNone   Role = ""
)

// ErrNoSession is returned when no descriptor has been persisted.
var ErrNoSession = errors.New("no persisted session")

// Descriptor is the persisted per-client session state.
type Descriptor struct {
	Role         Role   `json:"role"`
	MatchID      string `json:"matchId"`
	PlayerID     string `json:"playerId,omitempty"`
	PlayerName   string `json:"playerName,omitempty"`
	Pin          string `json:"pin,omitempty"`
	PlayerAvatar string `json:"playerAvatar,omitempty"`
}

// Validate checks the descriptor names enough state to resume.
func (d Descriptor) Validate() error {
	switch d.Role {
	case RoleHost:
		if d.MatchID == "" {
			return fmt.Errorf("host session missing match id")
		}
	case RolePlayer:
		if d.MatchID == "" || d.PlayerID == "" {
			return fmt.Errorf("player session missing match or player id")
		}
	default:
		return fmt.Errorf("unknown session role %q", d.Role)
	}
	return nil
}

// Store reads and writes the descriptor at a fixed path.
type Store struct {
	path string
}

// NewStore creates a descriptor store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save persists the descriptor.
func (s *Store) Save(d Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load reads the persisted descriptor, or ErrNoSession when absent.
func (s *Store) Load() (Descriptor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Descriptor{}, ErrNoSession
		}
		return Descriptor{}, fmt.Errorf("read session: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode session: %w", err)
	}
	return d, nil
}

// Clear removes the persisted descriptor.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
