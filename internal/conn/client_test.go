// ABOUTME: Tests for Client's bounded outbound queue and close-once semantics

package conn

import (
	"sync"
	"testing"

	"github.com/2389/courier/internal/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChannelName(t *testing.T, raw string) channel.Name {
	t.Helper()
	n, err := channel.Parse(raw)
	require.NoError(t, err)
	return n
}

func TestClient_EnqueueRespectsCapacity(t *testing.T) {
	c := newClient(testChannelName(t, "global"), nil, nil, 2)

	assert.True(t, c.Enqueue([]byte("a")))
	assert.True(t, c.Enqueue([]byte("b")))
	assert.False(t, c.Enqueue([]byte("c")), "third enqueue should be dropped, queue is full")
}

func TestClient_EnqueueAfterCloseReturnsFalse(t *testing.T) {
	c := newClient(testChannelName(t, "global"), nil, nil, 4)
	c.closeSend()

	assert.False(t, c.Enqueue([]byte("x")))
}

func TestClient_CloseSendIsIdempotent(t *testing.T) {
	c := newClient(testChannelName(t, "global"), nil, nil, 4)

	assert.NotPanics(t, func() {
		c.closeSend()
		c.closeSend()
	})
}

func TestClient_ConcurrentEnqueueDuringClose(t *testing.T) {
	c := newClient(testChannelName(t, "global"), nil, nil, 16)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Enqueue([]byte("x"))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.closeSend()
	}()

	assert.NotPanics(t, func() { wg.Wait() })
}

func TestClient_StateTransitions(t *testing.T) {
	c := newClient(testChannelName(t, "global"), nil, nil, 1)
	assert.Equal(t, Handshaking, c.State())

	c.setState(Subscribed)
	assert.Equal(t, Subscribed, c.State())

	c.setState(Closing)
	assert.Equal(t, Closing, c.State())

	c.setState(Closed)
	assert.Equal(t, Closed, c.State())
}
