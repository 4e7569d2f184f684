package events_test

import (
	"testing"

	"achieveit/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToAllListeners(t *testing.T) {
	hub := events.NewHub()
	a, stopA := hub.Listen(4)
	b, stopB := hub.Listen(4)
	defer stopA()
	defer stopB()

	hub.Notify(events.LevelInfo, "Saved", "Goal saved")

	for _, ch := range []<-chan events.Event{a, b} {
		e := <-ch
		assert.Equal(t, events.TypeNotice, e.Type)
		assert.Equal(t, events.Notice{Level: events.LevelInfo, Title: "Saved", Message: "Goal saved"}, e.Data)
	}
}

func TestHub_SlowListenerDropsEvents(t *testing.T) {
	hub := events.NewHub()
	ch, stop := hub.Listen(1)
	defer stop()

	hub.Publish(events.Event{Type: "first"})
	hub.Publish(events.Event{Type: "second"})

	e := <-ch
	assert.Equal(t, "first", e.Type)
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %v", e)
	default:
	}
}

func TestHub_StopAndClose(t *testing.T) {
	hub := events.NewHub()
	ch, stop := hub.Listen(1)
	require.Equal(t, 1, hub.Listeners())

	stop()
	stop()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Listeners())

	other, _ := hub.Listen(1)
	hub.Close()
	hub.Close()
	_, ok = <-other
	assert.False(t, ok)

	late, _ := hub.Listen(1)
	_, ok = <-late
	assert.False(t, ok)
}
