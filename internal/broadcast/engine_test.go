// ABOUTME: Tests for the Broadcast Engine: fan-out, dynamic channel creation, slow-consumer tolerance, and concurrency

package broadcast

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/courier/internal/channel"
)

type fakeSubscriber struct {
	id       uuid.UUID
	mu       sync.Mutex
	received [][]byte
	full     bool
	evicted  int
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{id: uuid.New()}
}

func (f *fakeSubscriber) ID() uuid.UUID { return f.id }

func (f *fakeSubscriber) Enqueue(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.received = append(f.received, payload)
	return true
}

func (f *fakeSubscriber) Evict() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted++
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func (f *fakeSubscriber) evictedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicted
}

func engineTestName(t *testing.T, raw string) channel.Name {
	t.Helper()
	n, err := channel.Parse(raw)
	require.NoError(t, err)
	return n
}

func TestEngine_PublishReachesAllSubscribers(t *testing.T) {
	registry := channel.NewRegistry(nil, channel.Limits{})
	engine := NewEngine(registry, nil)
	name := engineTestName(t, "global")

	a, b := newFakeSubscriber(), newFakeSubscriber()
	registry.Subscribe(name, a)
	registry.Subscribe(name, b)

	msg, err := NewMessage(map[string]any{"id": 1})
	require.NoError(t, err)

	reached, err := engine.Publish(name, msg)
	require.NoError(t, err)
	assert.Equal(t, 2, reached)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestEngine_PublishToUnknownChannelCreatesItWithZeroReached(t *testing.T) {
	registry := channel.NewRegistry(nil, channel.Limits{})
	engine := NewEngine(registry, nil)
	name := engineTestName(t, "forge.job.abc")

	msg, err := NewMessage(map[string]any{"progress": 0.5})
	require.NoError(t, err)

	reached, err := engine.Publish(name, msg)
	require.NoError(t, err)
	assert.Equal(t, 0, reached)
	assert.Equal(t, 1, registry.ChannelCount())
}

func TestEngine_PublishExcludesFullSubscribersFromReachedCount(t *testing.T) {
	registry := channel.NewRegistry(nil, channel.Limits{})
	engine := NewEngine(registry, nil)
	name := engineTestName(t, "global")

	slow := newFakeSubscriber()
	slow.full = true
	fast := newFakeSubscriber()
	registry.Subscribe(name, slow)
	registry.Subscribe(name, fast)

	msg, err := NewMessage(map[string]any{"id": 1})
	require.NoError(t, err)

	reached, err := engine.Publish(name, msg)
	require.NoError(t, err)
	assert.Equal(t, 1, reached)
	assert.Equal(t, 1, slow.evictedCount(), "a subscriber whose queue was full must be signaled to evict")
	assert.Equal(t, 0, fast.evictedCount())
}

func TestEngine_PublishIsolatesChannels(t *testing.T) {
	registry := channel.NewRegistry(nil, channel.Limits{})
	engine := NewEngine(registry, nil)
	chA := engineTestName(t, "user.alice")
	chB := engineTestName(t, "user.bob")

	subA := newFakeSubscriber()
	subB := newFakeSubscriber()
	registry.Subscribe(chA, subA)
	registry.Subscribe(chB, subB)

	msg, err := NewMessage(map[string]any{"id": 1})
	require.NoError(t, err)

	_, err = engine.Publish(chA, msg)
	require.NoError(t, err)

	assert.Equal(t, 1, subA.count())
	assert.Equal(t, 0, subB.count())
}

func TestEngine_ConcurrentPublishAndSubscribe(t *testing.T) {
	registry := channel.NewRegistry(nil, channel.Limits{})
	engine := NewEngine(registry, nil)
	name := engineTestName(t, "global")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.Subscribe(name, newFakeSubscriber())
		}()
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := NewMessage(map[string]any{"id": 1})
			require.NoError(t, err)
			_, err = engine.Publish(name, msg)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}
