package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/guessduel/network"
)

type fakeSubscriber struct {
	id   string
	fail bool

	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(data []byte) error {
	if f.fail {
		return errors.New("buffer full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, data)
	return nil
}

func (f *fakeSubscriber) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgs
}

func TestHub_PublishIsRoomScoped(t *testing.T) {
	hub := NewHub()
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	other := &fakeSubscriber{id: "c"}
	hub.Join(1, a)
	hub.Join(1, b)
	hub.Join(2, other)

	n := hub.Publish(1, network.Error("", "x"))
	assert.Equal(t, 2, n)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, other.received())

	var msg network.Outbound
	require.NoError(t, json.Unmarshal(a.received()[0], &msg))
	assert.Equal(t, network.MsgError, msg.Type)
}

func TestHub_FailingSubscriberIsIsolated(t *testing.T) {
	hub := NewHub()
	dropped := 0
	hub.OnDrop(func() { dropped++ })

	good := &fakeSubscriber{id: "good"}
	slow := &fakeSubscriber{id: "slow", fail: true}
	hub.Join(7, good)
	hub.Join(7, slow)

	assert.Equal(t, 1, hub.Publish(7, network.ConnectionSuccess(7)))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, hub.Members(7))

	assert.Equal(t, 1, hub.Publish(7, network.ConnectionSuccess(7)))
	assert.Len(t, good.received(), 2)
	assert.Equal(t, 1, dropped)
}

func TestHub_JoinLeave(t *testing.T) {
	hub := NewHub()
	hub.Join(1, &fakeSubscriber{id: "a"})
	hub.Join(1, &fakeSubscriber{id: "a"})
	hub.Join(3, &fakeSubscriber{id: "b"})
	assert.Equal(t, 1, hub.Members(1))
	assert.Equal(t, 2, hub.Rooms())

	hub.Leave(1, "a")
	hub.Leave(1, "missing")
	hub.Leave(9, "a")
	assert.Equal(t, 0, hub.Members(1))
	assert.Equal(t, 1, hub.Rooms())

	assert.Equal(t, 0, hub.Publish(1, network.ConnectionSuccess(1)))
}
