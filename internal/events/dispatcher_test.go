package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesByType(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []Event
	d.Subscribe(EventNewMessage, func(_ context.Context, evt Event) error {
		got = append(got, evt)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventNewMessage, ThreadID: "t"}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventChatResolved, ThreadID: "t"}))

	require.Len(t, got, 1)
	require.Equal(t, "t", got[0].ThreadID)
}

func TestDispatcherContinuesPastHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()

	called := false
	d.Subscribe(EventNewMessage, func(context.Context, Event) error {
		return errors.New("handler failed")
	})
	d.Subscribe(EventNewMessage, func(context.Context, Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventNewMessage}))
	require.True(t, called)
}
