package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojoseleonardo/chatwoot-messenger-gateway/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent", "json")
}

func TestDispatchRunsAllSubscribersBeforeReturning(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var mu sync.Mutex
	var got []string

	b.Subscribe("vk.incoming", "first", func(_ context.Context, evt Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "first:"+evt.Topic)
	})
	b.Subscribe("vk.incoming", "second", func(_ context.Context, _ Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "second")
	})

	evt := b.Dispatch(context.Background(), "vk.incoming", map[string]any{"k": "v"})

	require.NotEmpty(t, evt.ID)
	assert.ElementsMatch(t, []string{"first:vk.incoming", "second"}, got)
}

func TestPublishDeliversThroughWorker(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	done := make(chan Event, 1)
	b.Subscribe("telegram.outgoing", "ingest", func(_ context.Context, evt Event) {
		done <- evt
	})

	require.NoError(t, b.Publish(ctx, "telegram.outgoing", map[string]any{"to_id": "42"}))

	select {
	case evt := <-done:
		assert.Equal(t, "telegram.outgoing", evt.Topic)
		assert.Equal(t, "42", evt.Payload["to_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPanicInOneHandlerDoesNotStarveSiblings(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var survived bool
	b.Subscribe("wasender.incoming", "bad", func(_ context.Context, _ Event) {
		panic("boom")
	})
	b.Subscribe("wasender.incoming", "good", func(_ context.Context, _ Event) {
		survived = true
	})

	b.Dispatch(context.Background(), "wasender.incoming", nil)
	assert.True(t, survived)
}

func TestWildcardObserverSeesEveryTopic(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	var mu sync.Mutex
	var topics []string
	b.Subscribe(TopicAll, "feed", func(_ context.Context, evt Event) {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, evt.Topic)
	})

	b.Dispatch(context.Background(), "vk.incoming", nil)
	b.Dispatch(context.Background(), "chatwoot.outgoing", nil)

	assert.ElementsMatch(t, []string{"vk.incoming", "chatwoot.outgoing"}, topics)
}

func TestPublishAfterCloseFails(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	err := b.Publish(context.Background(), "vk.incoming", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDistinctEventIDs(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	a := b.Dispatch(context.Background(), "t", nil)
	c := b.Dispatch(context.Background(), "t", nil)
	assert.NotEqual(t, a.ID, c.ID)
}
