// SPDX-License-Identifier: MIT
package process

import (
	"context"
	"errors"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	pid int
	exe string
}

func (p fakeProc) Pid() int           { return p.pid }
func (p fakeProc) PPid() int          { return 1 }
func (p fakeProc) Executable() string { return p.exe }

type fakeTable struct {
	procs []ps.Process
	lists int
}

func (f *fakeTable) list() ([]ps.Process, error) {
	f.lists++
	return f.procs, nil
}

func (f *fakeTable) find(pid int) (ps.Process, error) {
	for _, p := range f.procs {
		if p.Pid() == pid {
			return p, nil
		}
	}
	return nil, nil
}

func newTestFinder(table *fakeTable) *Finder {
	f := NewFinder()
	f.candidates = table.list
	f.lookup = table.find
	return f
}

func TestFindPIDMatchesSubstringCaseInsensitive(t *testing.T) {
	table := &fakeTable{procs: []ps.Process{
		fakeProc{10, "explorer.exe"},
		fakeProc{20, "Spotify.exe"},
		fakeProc{21, "Spotify.exe"},
	}}
	f := newTestFinder(table)

	pid, err := f.FindPID(context.Background(), "spotify")
	require.NoError(t, err)
	assert.Equal(t, uint32(20), pid)
}

func TestFindPIDCachesWhileProcessLives(t *testing.T) {
	table := &fakeTable{procs: []ps.Process{fakeProc{20, "spotify"}}}
	f := newTestFinder(table)

	_, err := f.FindPID(context.Background(), "Spotify")
	require.NoError(t, err)
	_, err = f.FindPID(context.Background(), "spotify ")
	require.NoError(t, err)
	assert.Equal(t, 1, table.lists)

	// Restarted under a new pid.
	table.procs = []ps.Process{fakeProc{77, "spotify"}}
	pid, err := f.FindPID(context.Background(), "spotify")
	require.NoError(t, err)
	assert.Equal(t, uint32(77), pid)
	assert.Equal(t, 2, table.lists)
}

func TestFindPIDNotFound(t *testing.T) {
	f := newTestFinder(&fakeTable{procs: []ps.Process{fakeProc{1, "init"}}})

	_, err := f.FindPID(context.Background(), "spotify")
	assert.ErrorIs(t, err, ErrProcessNotFound)

	_, err = f.FindPID(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestFindPIDHonoursContext(t *testing.T) {
	f := newTestFinder(&fakeTable{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FindPID(ctx, "spotify")
	assert.True(t, errors.Is(err, context.Canceled))
}
