package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	s, err := New(path, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	return s, path
}

func TestVolume(t *testing.T) {
	s, _ := newStorage(t)
	defer s.Close()

	_, ok, err := s.Volume("g1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetVolume("g1", 0))
	v, ok, err := s.Volume("g1")
	require.NoError(t, err)
	assert.True(t, ok, "zero is a saved volume")
	assert.Equal(t, 0, v)
}

func TestRadioSurvivesReopen(t *testing.T) {
	s, path := newStorage(t)
	require.NoError(t, s.SetRadio("g1", true))
	require.NoError(t, s.SetVolume("g1", 80))
	require.NoError(t, s.Close())

	s, err := New(path, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer s.Close()

	on, err := s.Radio("g1")
	require.NoError(t, err)
	assert.True(t, on)

	v, _, err := s.Volume("g1")
	require.NoError(t, err)
	assert.Equal(t, 80, v)

	on, err = s.Radio("other")
	require.NoError(t, err)
	assert.False(t, on)
}

func TestCommandHistoryIsBounded(t *testing.T) {
	s, _ := newStorage(t)
	defer s.Close()

	for i := range commandHistoryLimit + 5 {
		require.NoError(t, s.AppendCommandToHistory("g1", CommandHistory{
			Command:  fmt.Sprintf("cmd%d", i),
			Datetime: time.Now(),
		}))
	}

	history, err := s.CommandsHistory("g1")
	require.NoError(t, err)
	require.Len(t, history, commandHistoryLimit)
	assert.Equal(t, "cmd5", history[0].Command)
	assert.Equal(t, fmt.Sprintf("cmd%d", commandHistoryLimit+4), history[len(history)-1].Command)
}
