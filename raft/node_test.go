package raft

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclarke42/browseraft/raft/bus"
)

func TestBuildOnClosedTransportReturnsErrBusClosed(t *testing.T) {
	b := bus.NewLocalBus(uniqueChannel(t))
	require.NoError(t, b.Close())

	_, err := NewBuilder[string]().ID(1).Transport(b).Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestPostFailureAfterBusClosedKillsNodeWithErrBusClosed(t *testing.T) {
	mock := clock.NewMock()
	channel := uniqueChannel(t)
	localBus := bus.NewLocalBus(channel)

	n, err := NewBuilder[string]().ID(1).Channel(channel).
		ElectionTimeout(20 * time.Millisecond).
		Clock(mock).
		Transport(localBus).
		Build()
	require.NoError(t, err)

	mock.Add(25 * time.Millisecond)
	require.True(t, waitFor(t, time.Second, func() bool { return n.Role() == Leader }))
	assert.Nil(t, n.Err())

	require.NoError(t, localBus.Close())

	n.Issue("hello")

	require.True(t, waitFor(t, time.Second, func() bool { return n.Err() != nil }))
	assert.ErrorIs(t, n.Err(), ErrBusClosed)
}
