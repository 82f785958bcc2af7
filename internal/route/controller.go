// SPDX-License-Identifier: MIT
package route

import (
	"errors"
	"fmt"
	"sync"

	applog "nowplaying/internal/log"
)

// Controller applies and reverts output redirection and listen-through. It
// holds no OS state of its own; every override is described by the token its
// Begin call returns.
type Controller struct {
	policy Policy
	stores StoreOpener
	log    *applog.Logger
}

// NewController creates a Controller over the given OS boundaries.
func NewController(policy Policy, stores StoreOpener) *Controller {
	return &Controller{
		policy: policy,
		stores: stores,
		log:    applog.Named("route"),
	}
}

// Redirection records one per-process output override.
type Redirection struct {
	PID      uint32
	Target   string
	Previous [len(Roles)]EndpointRef

	mu      sync.Mutex
	applied [len(Roles)]bool
	ended   bool
}

// BeginRedirection persists outputID as the default render endpoint of pid for
// every role, remembering what each role held before. If any write fails the
// roles already written are restored before the error is returned.
func (c *Controller) BeginRedirection(pid uint32, outputID string) (*Redirection, error) {
	const op = "begin redirection"
	if outputID == "" {
		return nil, &Error{Op: op, Err: ErrEndpointNotFound}
	}

	r := &Redirection{PID: pid, Target: outputID}
	for i, role := range Roles {
		prev, err := c.policy.ProcessEndpoint(pid, FlowRender, role)
		if err != nil {
			return nil, &Error{Op: op, Role: role.String(), Err: fmt.Errorf("%w: %w", ErrEndpointReadFailed, err)}
		}
		r.Previous[i] = prev
	}

	for i, role := range Roles {
		if err := c.policy.SetProcessEndpoint(pid, FlowRender, role, Endpoint(outputID)); err != nil {
			writeErr := &Error{Op: op, Role: role.String(), Device: outputID, Err: fmt.Errorf("%w: %w", ErrEndpointWriteFailed, err)}
			if rbErr := c.EndRedirection(r); rbErr != nil {
				c.log.Errorf("rollback after failed %s write left state altered: %v", role, rbErr)
				return nil, errors.Join(writeErr, rbErr)
			}
			return nil, writeErr
		}
		r.mu.Lock()
		r.applied[i] = true
		r.mu.Unlock()
	}

	c.log.Infof("pid %d redirected to %s (previous: %s/%s/%s)",
		pid, outputID, r.Previous[0], r.Previous[1], r.Previous[2])
	return r, nil
}

// EndRedirection restores every role BeginRedirection wrote. It is safe on a
// nil or partially applied token, and only the first call has any effect.
// Every role is attempted even if an earlier restore fails.
func (c *Controller) EndRedirection(r *Redirection) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil
	}
	r.ended = true

	var errs []error
	for i := len(Roles) - 1; i >= 0; i-- {
		if !r.applied[i] {
			continue
		}
		role := Roles[i]
		if err := c.policy.SetProcessEndpoint(r.PID, FlowRender, role, r.Previous[i]); err != nil {
			errs = append(errs, &Error{Op: "end redirection", Role: role.String(), Err: fmt.Errorf("%w: %w", ErrEndpointWriteFailed, err)})
			continue
		}
		r.applied[i] = false
	}
	if len(errs) == 0 {
		c.log.Debugf("pid %d redirection reverted", r.PID)
	}
	return errors.Join(errs...)
}

// ListenThrough records one listen-through override on a capture device.
type ListenThrough struct {
	InputID        string
	OutputID       string
	PreviousFlag   bool
	PreviousTarget string

	mu    sync.Mutex
	store PropertyStore
	ended bool
}

// BeginListenThrough routes the capture device inputID live to outputID. Both
// ids may be given in interface-path form. The target device is written before
// the flag so the store never shows the flag enabled without a device; a
// failed flag write restores the previous target.
func (c *Controller) BeginListenThrough(inputID, outputID string) (*ListenThrough, error) {
	const op = "begin listen-through"
	in, out := StripDeviceID(inputID), StripDeviceID(outputID)
	if in == "" || out == "" {
		return nil, &Error{Op: op, Err: ErrEndpointNotFound}
	}

	store, err := c.stores.OpenWritable(in)
	if err != nil {
		if !errors.Is(err, ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", ErrEndpointNotFound, err)
		}
		return nil, &Error{Op: op, Device: in, Err: err}
	}

	fail := func(err error) (*ListenThrough, error) {
		if cerr := store.Close(); cerr != nil {
			c.log.Warnf("closing property store for %s: %v", in, cerr)
		}
		return nil, err
	}

	prevFlag, err := store.ListenEnabled()
	if err != nil {
		return fail(&Error{Op: op, Device: in, Err: fmt.Errorf("%w: %w", ErrEndpointReadFailed, err)})
	}
	prevTarget, err := store.ListenTarget()
	if err != nil {
		return fail(&Error{Op: op, Device: in, Err: fmt.Errorf("%w: %w", ErrEndpointReadFailed, err)})
	}

	if err := store.SetListenTarget(out); err != nil {
		return fail(&Error{Op: op, Device: in, Err: fmt.Errorf("%w: %w", ErrEndpointWriteFailed, err)})
	}
	if err := store.SetListenEnabled(true); err != nil {
		writeErr := &Error{Op: op, Device: in, Err: fmt.Errorf("%w: %w", ErrEndpointWriteFailed, err)}
		if rbErr := store.SetListenTarget(prevTarget); rbErr != nil {
			c.log.Errorf("restoring listen target of %s: %v", in, rbErr)
			return fail(errors.Join(writeErr, rbErr))
		}
		return fail(writeErr)
	}

	c.log.Infof("listen-through enabled: %s -> %s", in, out)
	return &ListenThrough{
		InputID:        in,
		OutputID:       out,
		PreviousFlag:   prevFlag,
		PreviousTarget: prevTarget,
		store:          store,
	}, nil
}

// EndListenThrough clears the listen flag, then writes the previous target
// back (an explicit empty value when there was none). If the flag cannot be
// cleared the current target is left in place, so the store never shows the
// flag enabled without a device. A flag that was enabled before
// BeginListenThrough is re-enabled last, unless it had no target. Only the
// first call has any effect; the store is closed afterwards.
func (c *Controller) EndListenThrough(l *ListenThrough) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended {
		return nil
	}
	l.ended = true
	defer func() {
		if err := l.store.Close(); err != nil {
			c.log.Warnf("closing property store for %s: %v", l.InputID, err)
		}
	}()

	const op = "end listen-through"
	writeErr := func(err error) error {
		return &Error{Op: op, Device: l.InputID, Err: fmt.Errorf("%w: %w", ErrEndpointWriteFailed, err)}
	}

	if err := l.store.SetListenEnabled(false); err != nil {
		c.log.Errorf("clearing listen flag on %s failed, keeping target %s: %v", l.InputID, l.OutputID, err)
		return writeErr(err)
	}
	if err := l.store.SetListenTarget(l.PreviousTarget); err != nil {
		return writeErr(err)
	}
	if l.PreviousFlag {
		if l.PreviousTarget == "" {
			c.log.Warnf("listen flag on %s was enabled with no target; leaving it cleared", l.InputID)
		} else if err := l.store.SetListenEnabled(true); err != nil {
			return writeErr(err)
		}
	}
	c.log.Debugf("listen-through on %s reverted", l.InputID)
	return nil
}

// WithRedirection runs fn with pid redirected to outputID and always reverts
// the redirection afterwards, joining any revert error with fn's error.
func (c *Controller) WithRedirection(pid uint32, outputID string, fn func(*Redirection) error) (err error) {
	r, err := c.BeginRedirection(pid, outputID)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := c.EndRedirection(r); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Join(err, fmt.Errorf("panic during redirection: %v", p))
		}
	}()
	return fn(r)
}

// WithListenThrough runs fn with listen-through enabled and always reverts it
// afterwards, joining any revert error with fn's error.
func (c *Controller) WithListenThrough(inputID, outputID string, fn func(*ListenThrough) error) (err error) {
	l, err := c.BeginListenThrough(inputID, outputID)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := c.EndListenThrough(l); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Join(err, fmt.Errorf("panic during listen-through: %v", p))
		}
	}()
	return fn(l)
}
