package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclarke42/browseraft/raft/wire"
)

func TestLocalBusDoesNotLoopbackToSender(t *testing.T) {
	channel := "test-loopback"
	a := NewLocalBus(channel)
	defer a.Close()

	received := make(chan wire.Envelope, 1)
	_, err := a.Listen(func(e wire.Envelope) { received <- e })
	require.NoError(t, err)

	require.NoError(t, a.Post(wire.Envelope{From: 1, To: wire.RecipientEveryone()}))

	select {
	case <-received:
		t.Fatal("sender must not receive its own post")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBusDeliversToOtherSubscribers(t *testing.T) {
	channel := "test-delivery"
	a := NewLocalBus(channel)
	defer a.Close()
	b := NewLocalBus(channel)
	defer b.Close()

	received := make(chan wire.Envelope, 1)
	_, err := b.Listen(func(e wire.Envelope) { received <- e })
	require.NoError(t, err)

	require.NoError(t, a.Post(wire.Envelope{From: 1, To: wire.RecipientEveryone()}))

	select {
	case e := <-received:
		assert.Equal(t, wire.PeerID(1), e.From)
	case <-time.After(time.Second):
		t.Fatal("expected delivery within timeout")
	}
}

func TestLocalBusPostAfterCloseFails(t *testing.T) {
	b := NewLocalBus("test-closed")
	require.NoError(t, b.Close())

	err := b.Post(wire.Envelope{From: 1, To: wire.RecipientEveryone()})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLocalBusListenCloserDetachesOnlyHandler(t *testing.T) {
	channel := "test-detach"
	a := NewLocalBus(channel)
	defer a.Close()
	b := NewLocalBus(channel)
	defer b.Close()

	received := make(chan wire.Envelope, 1)
	closer, err := b.Listen(func(e wire.Envelope) { received <- e })
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	require.NoError(t, a.Post(wire.Envelope{From: 1, To: wire.RecipientEveryone()}))

	select {
	case <-received:
		t.Fatal("handler was detached and should not fire")
	case <-time.After(50 * time.Millisecond):
	}
}
