// SPDX-License-Identifier: MIT
package route

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cableOut = `\\?\SWD#MMDEVAPI#{0.0.0.00000000}.{11111111-2222-3333-4444-555555555555}#{e6327cad-dcec-4949-ae8a-991e976a79d2}`
	micIn    = `\\?\SWD#MMDEVAPI#{0.0.1.00000000}.{aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee}#{2eef81be-33fa-4506-9776-27ef0e0a63e1}`
	speakers = `\\?\SWD#MMDEVAPI#{0.0.0.00000000}.{99999999-8888-7777-6666-555555555555}#{e6327cad-dcec-4949-ae8a-991e976a79d2}`
)

func snapshotRoles(t *testing.T, p Policy, pid uint32) [len(Roles)]EndpointRef {
	t.Helper()
	var out [len(Roles)]EndpointRef
	for i, role := range Roles {
		ref, err := p.ProcessEndpoint(pid, FlowRender, role)
		require.NoError(t, err)
		out[i] = ref
	}
	return out
}

func TestRedirectionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		seed map[Role]string
		want [len(Roles)]EndpointRef
	}{
		{
			name: "all roles unset",
			want: [len(Roles)]EndpointRef{SystemDefault(), SystemDefault(), SystemDefault()},
		},
		{
			name: "mixed prior overrides",
			seed: map[Role]string{RoleMultimedia: speakers},
			want: [len(Roles)]EndpointRef{SystemDefault(), Endpoint(speakers), SystemDefault()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := NewMemoryPolicy()
			for role, id := range tt.seed {
				require.NoError(t, policy.SetProcessEndpoint(42, FlowRender, role, Endpoint(id)))
			}
			c := NewController(policy, NewMemoryStores())

			r, err := c.BeginRedirection(42, cableOut)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Previous)

			for _, ref := range snapshotRoles(t, policy, 42) {
				assert.Equal(t, cableOut, ref.ID())
			}

			require.NoError(t, c.EndRedirection(r))
			assert.Equal(t, tt.want, snapshotRoles(t, policy, 42))
		})
	}
}

func TestRedirectionRollsBackOnPartialFailure(t *testing.T) {
	policy := NewMemoryPolicy()
	policy.FailSet = func(_ uint32, _ Flow, role Role, ref EndpointRef) error {
		if role == RoleCommunications && ref.ID() == cableOut {
			return errors.New("E_ACCESSDENIED")
		}
		return nil
	}
	c := NewController(policy, NewMemoryStores())

	r, err := c.BeginRedirection(7, cableOut)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrEndpointWriteFailed)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "communications", rerr.Role)

	for _, ref := range snapshotRoles(t, policy, 7) {
		assert.True(t, ref.IsSystemDefault(), "role left altered: %s", ref)
	}
	// console + multimedia written, then both restored
	assert.Equal(t, 4, policy.Writes())
}

func TestRedirectionReadFailureWritesNothing(t *testing.T) {
	policy := NewMemoryPolicy()
	policy.FailGet = func(uint32, Flow, Role) error { return errors.New("boom") }
	c := NewController(policy, NewMemoryStores())

	_, err := c.BeginRedirection(1, cableOut)
	assert.ErrorIs(t, err, ErrEndpointReadFailed)
	assert.Zero(t, policy.Writes())
}

func TestEndRedirectionIsIdempotentAndNilSafe(t *testing.T) {
	policy := NewMemoryPolicy()
	c := NewController(policy, NewMemoryStores())

	assert.NoError(t, c.EndRedirection(nil))

	r, err := c.BeginRedirection(3, cableOut)
	require.NoError(t, err)
	require.NoError(t, c.EndRedirection(r))
	writes := policy.Writes()
	require.NoError(t, c.EndRedirection(r))
	assert.Equal(t, writes, policy.Writes())
}

func TestBeginRedirectionRejectsEmptyTarget(t *testing.T) {
	c := NewController(NewMemoryPolicy(), NewMemoryStores())
	_, err := c.BeginRedirection(3, "")
	assert.ErrorIs(t, err, ErrEndpointNotFound)
}

func TestListenThroughRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		prior ListenState
	}{
		{"never configured", ListenState{}},
		{"stale target, flag off", ListenState{Target: "{old}"}},
		{"already listening elsewhere", ListenState{Enabled: true, Target: "{old}"}},
	}

	in := StripDeviceID(micIn)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := NewMemoryStores()
			stores.Set(in, tt.prior)
			c := NewController(NewMemoryPolicy(), stores)

			l, err := c.BeginListenThrough(micIn, speakers)
			require.NoError(t, err)
			assert.Equal(t, ListenState{Enabled: true, Target: StripDeviceID(speakers)}, stores.State(in))

			require.NoError(t, c.EndListenThrough(l))
			assert.Equal(t, tt.prior, stores.State(in))
			assert.Zero(t, stores.OpenCount())

			require.NoError(t, c.EndListenThrough(l))
		})
	}
}

func TestListenThroughOpenFailures(t *testing.T) {
	in := StripDeviceID(micIn)
	tests := []struct {
		name    string
		setup   func(*MemoryStores)
		want    error
		notWant error
	}{
		{"access denied", func(m *MemoryStores) { m.Deny = map[string]bool{in: true} }, ErrPermissionDenied, ErrEndpointNotFound},
		{"device missing", func(m *MemoryStores) { m.Missing = map[string]bool{in: true} }, ErrEndpointNotFound, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := NewMemoryStores()
			tt.setup(stores)
			c := NewController(NewMemoryPolicy(), stores)

			l, err := c.BeginListenThrough(micIn, speakers)
			assert.Nil(t, l)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, tt.notWant)
			assert.Zero(t, stores.OpenCount())
		})
	}
}

func TestEndListenThroughKeepsTargetWhenFlagStuck(t *testing.T) {
	in := StripDeviceID(micIn)
	for _, prior := range []ListenState{{}, {Target: "{old}"}, {Enabled: true, Target: "{old}"}} {
		stores := NewMemoryStores()
		stores.Set(in, prior)
		c := NewController(NewMemoryPolicy(), stores)

		l, err := c.BeginListenThrough(micIn, speakers)
		require.NoError(t, err)

		stores.FailSetFlag = errors.New("E_FAIL")
		err = c.EndListenThrough(l)
		assert.ErrorIs(t, err, ErrEndpointWriteFailed)

		st := stores.State(in)
		assert.False(t, st.Enabled && st.Target == "", "prior %+v left %+v", prior, st)
		assert.Equal(t, ListenState{Enabled: true, Target: StripDeviceID(speakers)}, st)
		assert.Zero(t, stores.OpenCount())
		assert.NoError(t, c.EndListenThrough(l))
	}
}

func TestEndListenThroughNeverEnablesWithoutTarget(t *testing.T) {
	in := StripDeviceID(micIn)
	stores := NewMemoryStores()
	stores.Set(in, ListenState{Enabled: true})
	c := NewController(NewMemoryPolicy(), stores)

	l, err := c.BeginListenThrough(micIn, speakers)
	require.NoError(t, err)
	require.NoError(t, c.EndListenThrough(l))
	assert.Equal(t, ListenState{}, stores.State(in))
}

func TestListenThroughFlagFailureRestoresTarget(t *testing.T) {
	in := StripDeviceID(micIn)
	stores := NewMemoryStores()
	stores.Set(in, ListenState{Target: "{old}"})
	stores.FailSetFlag = errors.New("E_FAIL")
	c := NewController(NewMemoryPolicy(), stores)

	_, err := c.BeginListenThrough(micIn, speakers)
	assert.ErrorIs(t, err, ErrEndpointWriteFailed)
	assert.Equal(t, ListenState{Target: "{old}"}, stores.State(in))
	assert.Zero(t, stores.OpenCount())
}

func TestScopedAcquisitionsNestAndRevert(t *testing.T) {
	policy := NewMemoryPolicy()
	stores := NewMemoryStores()
	c := NewController(policy, stores)
	in := StripDeviceID(micIn)

	fnErr := errors.New("capture failed")
	err := c.WithListenThrough(micIn, speakers, func(*ListenThrough) error {
		return c.WithRedirection(99, cableOut, func(*Redirection) error {
			assert.True(t, stores.State(in).Enabled)
			ref, _ := policy.ProcessEndpoint(99, FlowRender, RoleMultimedia)
			assert.Equal(t, cableOut, ref.ID())
			return fnErr
		})
	})
	assert.ErrorIs(t, err, fnErr)
	assert.Equal(t, ListenState{}, stores.State(in))
	for _, ref := range snapshotRoles(t, policy, 99) {
		assert.True(t, ref.IsSystemDefault())
	}
}

func TestScopedAcquisitionRevertsOnPanic(t *testing.T) {
	policy := NewMemoryPolicy()
	c := NewController(policy, NewMemoryStores())

	err := c.WithRedirection(5, cableOut, func(*Redirection) error {
		panic("render loop exploded")
	})
	require.Error(t, err)
	for _, ref := range snapshotRoles(t, policy, 5) {
		assert.True(t, ref.IsSystemDefault())
	}
}
