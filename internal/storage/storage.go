// Package storage keeps per-guild settings and command history on top of the
// JSON datastore.
package storage

import (
	"fmt"
	"sync"
	"time"

	"jellycord/datastore"

	"github.com/sirupsen/logrus"
)

const commandHistoryLimit = 20

type Storage struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

type CommandHistory struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Param     string    `json:"param,omitempty"`
	Datetime  time.Time `json:"datetime"`
}

// Record is what is stored for one guild.
type Record struct {
	Volume          *int             `json:"volume,omitempty"`
	RadioEnabled    bool             `json:"radio_enabled"`
	CommandsHistory []CommandHistory `json:"commands_history"`
}

func New(filePath string, log *logrus.Entry) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Log = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) record(guildID string) (*Record, error) {
	var r Record
	if _, err := s.ds.Get(guildID, &r); err != nil {
		return nil, fmt.Errorf("guild %s: %w", guildID, err)
	}
	return &r, nil
}

// update applies fn to the guild record and stores the result.
func (s *Storage) update(guildID string, fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.record(guildID)
	if err != nil {
		return err
	}
	fn(r)
	return s.ds.Put(guildID, r)
}

// Volume returns the saved volume of a guild.
func (s *Storage) Volume(guildID string) (int, bool, error) {
	r, err := s.record(guildID)
	if err != nil || r.Volume == nil {
		return 0, false, err
	}
	return *r.Volume, true, nil
}

func (s *Storage) SetVolume(guildID string, percent int) error {
	return s.update(guildID, func(r *Record) { r.Volume = &percent })
}

// Radio reports whether radio mode was left on in a guild.
func (s *Storage) Radio(guildID string) (bool, error) {
	r, err := s.record(guildID)
	if err != nil {
		return false, err
	}
	return r.RadioEnabled, nil
}

func (s *Storage) SetRadio(guildID string, enabled bool) error {
	return s.update(guildID, func(r *Record) { r.RadioEnabled = enabled })
}

// AppendCommandToHistory records a command, keeping the most recent ones.
func (s *Storage) AppendCommandToHistory(guildID string, cmd CommandHistory) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistory = append(r.CommandsHistory, cmd)
		if n := len(r.CommandsHistory); n > commandHistoryLimit {
			r.CommandsHistory = r.CommandsHistory[n-commandHistoryLimit:]
		}
	})
}

func (s *Storage) CommandsHistory(guildID string) ([]CommandHistory, error) {
	r, err := s.record(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistory, nil
}
