package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"}) // dropped, must not block

	e := <-ch
	assert.Equal(t, "a", e.Type)
	assert.False(t, e.Time.IsZero())
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %q", extra.Type)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "after"})
}

func TestRecorderKeepsNewestFirst(t *testing.T) {
	t.Parallel()
	r := NewRecorder(3, "task.")
	for _, typ := range []string{"task.a", "other", "task.b", "task.c", "task.d"} {
		r.Record(Event{Type: typ})
	}
	got := r.Recent()
	require.Len(t, got, 3)
	assert.Equal(t, "task.d", got[0].Type)
	assert.Equal(t, "task.c", got[1].Type)
	assert.Equal(t, "task.b", got[2].Type)
}

func TestRecorderRun(t *testing.T) {
	t.Parallel()
	b := New()
	r := NewRecorder(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, b) }()

	require.Eventually(t, func() bool {
		b.Publish(Event{Type: "task.fired"})
		return len(r.Recent()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
