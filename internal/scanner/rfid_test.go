package scanner

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenerDeliversEvents(t *testing.T) {
	client, server := net.Pipe()

	listener, err := NewListener(func(context.Context) (io.ReadWriteCloser, error) {
		return server, nil
	}, 0, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, listener.Start(context.Background()))
	defer listener.Stop()

	go func() {
		client.Write([]byte("04A1B2C3\n"))
		client.Write([]byte("\n")) // blank lines are skipped
		client.Write([]byte("  04D5E6F7  \n"))
		client.Close()
	}()

	first := receiveEvent(t, listener)
	require.Equal(t, "04A1B2C3", first.UID)
	require.False(t, first.Time.IsZero())

	second := receiveEvent(t, listener)
	require.Equal(t, "04D5E6F7", second.UID)
}

func TestListenerGivesUpAfterMaxReconnect(t *testing.T) {
	attempts := 0
	listener, err := NewListener(func(context.Context) (io.ReadWriteCloser, error) {
		attempts++
		return nil, errors.New("no such device")
	}, 2, time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, listener.Start(context.Background()))

	select {
	case _, ok := <-listener.Events():
		require.False(t, ok, "expected closed channel, not an event")
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not give up")
	}
	require.Equal(t, 3, attempts)
}

func TestListenerStopClosesChannel(t *testing.T) {
	_, server := net.Pipe()

	listener, err := NewListener(func(context.Context) (io.ReadWriteCloser, error) {
		return server, nil
	}, 5, time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, listener.Start(context.Background()))
	listener.Stop()

	select {
	case _, ok := <-listener.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Stop")
	}

	require.Error(t, listener.Start(context.Background()))
}

func receiveEvent(t *testing.T, listener *Listener) Event {
	t.Helper()
	select {
	case event, ok := <-listener.Events():
		require.True(t, ok, "events channel closed early")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
