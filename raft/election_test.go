package raft

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniqueChannel gives every test its own LocalBus channel name so tests
// never cross-talk through the package-level hub registry.
func uniqueChannel(t *testing.T) string {
	return fmt.Sprintf("test-%s", t.Name())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestSoloNodeBecomesLeader(t *testing.T) {
	mock := clock.NewMock()
	var roleChanges []Role
	var mu sync.Mutex

	n, err := NewBuilder[string]().
		ID(1).
		Channel(uniqueChannel(t)).
		ElectionTimeout(20 * time.Millisecond).
		Clock(mock).
		OnRoleChange(func(r Role) {
			mu.Lock()
			roleChanges = append(roleChanges, r)
			mu.Unlock()
		}).
		Build()
	require.NoError(t, err)
	defer n.Stop()

	mock.Add(25 * time.Millisecond)

	require.True(t, waitFor(t, time.Second, func() bool { return n.Role() == Leader }))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Role{Leader}, roleChanges)
}

func TestTwoNodeDeterministicWinner(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)

	a, err := NewBuilder[string]().ID(1).Channel(channel).
		ElectionTimeoutRange(200*time.Millisecond, 200*time.Millisecond).
		HeartbeatTimeout(50 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer a.Stop()

	b, err := NewBuilder[string]().ID(2).Channel(channel).
		ElectionTimeoutRange(200*time.Millisecond, 200*time.Millisecond).
		HeartbeatTimeout(50 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer b.Stop()

	mock.Add(300 * time.Millisecond)

	require.True(t, waitFor(t, time.Second, func() bool { return a.Role() == Leader && b.Role() == Follower }))
	assert.Equal(t, Leader, a.Role())
	assert.Equal(t, Follower, b.Role())
}

func TestThreeNodeElectionWithForcedWinner(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)

	a, err := NewBuilder[string]().ID(10).Channel(channel).
		ElectionTimeout(20 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer a.Stop()

	b, err := NewBuilder[string]().ID(20).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer b.Stop()

	c, err := NewBuilder[string]().ID(30).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer c.Stop()

	// Let A hear every PeerAdded announcement before the election timer race
	// starts; B and C learn the full set from A's PeerSet once A leads.
	require.True(t, waitFor(t, time.Second, func() bool {
		return len(a.Peers()) == 3
	}))

	mock.Add(25 * time.Millisecond)

	require.True(t, waitFor(t, time.Second, func() bool {
		return a.Role() == Leader && b.Role() == Follower && c.Role() == Follower
	}))

	want := NewPeerSet(10, 20, 30)
	assert.Equal(t, want, a.Peers())
	assert.Equal(t, want, b.Peers())
	assert.Equal(t, want, c.Peers())
}

func TestLeaderFailoverElectsNewLeaderWithHigherTerm(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)

	a, err := NewBuilder[string]().ID(10).Channel(channel).
		ElectionTimeout(20 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)

	b, err := NewBuilder[string]().ID(20).Channel(channel).
		ElectionTimeout(190 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer b.Stop()

	c, err := NewBuilder[string]().ID(30).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer c.Stop()

	require.True(t, waitFor(t, time.Second, func() bool { return len(a.Peers()) == 3 }))
	mock.Add(25 * time.Millisecond)
	require.True(t, waitFor(t, time.Second, func() bool { return a.Role() == Leader }))
	termUnderA := a.Term()

	a.Stop()

	mock.Add(205 * time.Millisecond)

	require.True(t, waitFor(t, time.Second, func() bool {
		return b.Role() == Leader || c.Role() == Leader
	}))

	var newLeaderTerm Term
	if b.Role() == Leader {
		assert.Equal(t, Follower, c.Role())
		newLeaderTerm = b.Term()
	} else {
		assert.Equal(t, Follower, b.Role())
		newLeaderTerm = c.Term()
	}
	assert.Greater(t, uint32(newLeaderTerm), uint32(termUnderA))
}

func TestPayloadPropagationSkipsLeader(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)

	var bReceived, cReceived []string
	var mu sync.Mutex

	a, err := NewBuilder[string]().ID(10).Channel(channel).
		ElectionTimeout(20 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).
		OnReceived(func(p string) {
			mu.Lock()
			defer mu.Unlock()
			t.Fatalf("leader must not receive its own payload, got %q", p)
		}).
		Build()
	require.NoError(t, err)
	defer a.Stop()

	b, err := NewBuilder[string]().ID(20).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).
		OnReceived(func(p string) {
			mu.Lock()
			defer mu.Unlock()
			bReceived = append(bReceived, p)
		}).
		Build()
	require.NoError(t, err)
	defer b.Stop()

	c, err := NewBuilder[string]().ID(30).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).
		OnReceived(func(p string) {
			mu.Lock()
			defer mu.Unlock()
			cReceived = append(cReceived, p)
		}).
		Build()
	require.NoError(t, err)
	defer c.Stop()

	require.True(t, waitFor(t, time.Second, func() bool { return len(a.Peers()) == 3 }))
	mock.Add(25 * time.Millisecond)
	require.True(t, waitFor(t, time.Second, func() bool { return a.Role() == Leader }))

	a.Issue("hello")

	require.True(t, waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bReceived) == 1 && len(cReceived) == 1
	}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello"}, bReceived)
	assert.Equal(t, []string{"hello"}, cReceived)
}

func TestMembershipReconciliationOnLateJoiner(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)

	a, err := NewBuilder[string]().ID(10).Channel(channel).
		ElectionTimeout(20 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer a.Stop()

	b, err := NewBuilder[string]().ID(20).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer b.Stop()

	c, err := NewBuilder[string]().ID(30).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer c.Stop()

	require.True(t, waitFor(t, time.Second, func() bool { return len(a.Peers()) == 3 }))
	mock.Add(25 * time.Millisecond)
	require.True(t, waitFor(t, time.Second, func() bool { return a.Role() == Leader }))

	d, err := NewBuilder[string]().ID(40).Channel(channel).
		ElectionTimeout(200 * time.Millisecond).
		HeartbeatTimeout(10 * time.Millisecond).
		Clock(mock).Build()
	require.NoError(t, err)
	defer d.Stop()

	mock.Add(15 * time.Millisecond)

	want := NewPeerSet(10, 20, 30, 40)
	require.True(t, waitFor(t, time.Second, func() bool {
		return len(d.Peers()) == 4
	}))
	assert.Equal(t, want, d.Peers())
}

func TestStopTwiceIsIdempotent(t *testing.T) {
	n, err := NewBuilder[string]().ID(1).Channel(uniqueChannel(t)).
		ElectionTimeout(time.Hour).Build()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Stop()
		n.Stop()
	})
}

func TestStaleElectionTimeoutDoesNotDemoteLeader(t *testing.T) {
	mock := clock.NewMock()
	n, err := NewBuilder[string]().ID(1).Channel(uniqueChannel(t)).
		ElectionTimeout(20 * time.Millisecond).
		Clock(mock).
		Build()
	require.NoError(t, err)
	defer n.Stop()

	mock.Add(25 * time.Millisecond)
	require.True(t, waitFor(t, time.Second, func() bool { return n.Role() == Leader }))
	termAsLeader := n.Term()

	// Simulate a stale timer callback firing after Timer.Stop() has already
	// been called against it (winElection cancels the election timer, but a
	// concurrently-firing callback is not guaranteed to be suppressed).
	n.onElectionTimeout()

	assert.Equal(t, Leader, n.Role())
	assert.Equal(t, termAsLeader, n.Term())
}

func TestIssueOnNonLeaderIsDropped(t *testing.T) {
	var received bool
	n, err := NewBuilder[string]().ID(1).Channel(uniqueChannel(t)).
		ElectionTimeout(time.Hour).
		OnReceived(func(string) { received = true }).
		Build()
	require.NoError(t, err)
	defer n.Stop()

	require.Equal(t, Follower, n.Role())
	n.Issue("dropped")

	assert.False(t, received)
}
