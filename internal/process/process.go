// SPDX-License-Identifier: MIT

// Package process finds the OS process id of the media program. On Windows
// only processes owning an audio session are considered; elsewhere every
// process is.
package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mitchellh/go-ps"

	applog "nowplaying/internal/log"
)

// ErrProcessNotFound is returned when no candidate process matches.
var ErrProcessNotFound = errors.New("process not found")

// Finder resolves program names to process ids and caches the answer for
// as long as the process lives.
type Finder struct {
	candidates func() ([]ps.Process, error)
	lookup     func(pid int) (ps.Process, error)

	mu    sync.Mutex
	cache map[string]int
	log   *applog.Logger
}

// NewFinder returns a Finder over the platform's candidate processes.
func NewFinder() *Finder {
	return &Finder{
		candidates: platformCandidates,
		lookup:     ps.FindProcess,
		cache:      make(map[string]int),
		log:        applog.Named("process"),
	}
}

func matches(p ps.Process, name string) bool {
	return p != nil && strings.Contains(strings.ToLower(p.Executable()), name)
}

// FindPID returns the id of the first candidate process whose executable
// name contains name, case-insensitively.
func (f *Finder) FindPID(ctx context.Context, name string) (uint32, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return 0, fmt.Errorf("%w: empty program name", ErrProcessNotFound)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if pid, ok := f.cache[key]; ok {
		if p, err := f.lookup(pid); err == nil && matches(p, key) {
			return uint32(pid), nil
		}
		delete(f.cache, key)
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	procs, err := f.candidates()
	if err != nil {
		return 0, fmt.Errorf("listing processes: %w", err)
	}
	for _, p := range procs {
		if matches(p, key) {
			f.cache[key] = p.Pid()
			f.log.Debugf("%q is pid %d (%s)", name, p.Pid(), p.Executable())
			return uint32(p.Pid()), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrProcessNotFound, name)
}
