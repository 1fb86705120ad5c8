package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records what the hub sends it
type fakeClient struct {
	id      string
	actorID string
	sub     Subscription

	mu       sync.Mutex
	messages [][]byte
	full     bool
	closed   bool
}

func newFakeClient(t *testing.T, id, accounts string) *fakeClient {
	t.Helper()
	sub, err := ParseSubscription(accounts, "")
	require.NoError(t, err)
	return &fakeClient{id: id, actorID: "actor-" + id, sub: sub}
}

func (f *fakeClient) ID() string                 { return f.id }
func (f *fakeClient) ActorID() string            { return f.actorID }
func (f *fakeClient) Subscription() Subscription { return f.sub }

func (f *fakeClient) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClientClosed
	}
	if f.full {
		return ErrSlowClient
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		var evt struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(m, &evt); err == nil {
			types = append(types, evt.Type)
		}
	}
	return types
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(0)
	a := newFakeClient(t, "a", "")
	b := newFakeClient(t, "b", "kas")

	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))
	require.NoError(t, hub.Register(a), "registering twice is a no-op")
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 0, hub.ActorConnections("actor-a"))
}

func TestHub_MaxConnectionsPerActor(t *testing.T) {
	hub := NewHub(2)

	first := &fakeClient{id: "1", actorID: "kasir"}
	second := &fakeClient{id: "2", actorID: "kasir"}
	third := &fakeClient{id: "3", actorID: "kasir"}

	require.NoError(t, hub.Register(first))
	require.NoError(t, hub.Register(second))
	assert.ErrorIs(t, hub.Register(third), ErrTooManyConnections)
	assert.Equal(t, 2, hub.ActorConnections("kasir"))

	// Another actor is unaffected
	require.NoError(t, hub.Register(&fakeClient{id: "4", actorID: "admin"}))

	hub.Unregister(first)
	assert.NoError(t, hub.Register(third))
}

func TestHub_Broadcast_FollowsSubscription(t *testing.T) {
	hub := NewHub(0)

	all := newFakeClient(t, "all", "")
	kas := newFakeClient(t, "kas", "kas")
	bank := newFakeClient(t, "bank", "bank")
	for _, c := range []*fakeClient{all, kas, bank} {
		require.NoError(t, hub.Register(c))
	}

	hub.Broadcast(AccountBalanceChanged(nil, "kas"))
	hub.Broadcast(TransferCreated(nil, "kas", "bank"))
	hub.Broadcast(ReceivableWrittenOff(nil))

	assert.Equal(t, []string{"account.balance_changed", "transfer.created", "receivable.written_off"}, all.received())
	assert.Equal(t, []string{"account.balance_changed", "transfer.created", "receivable.written_off"}, kas.received())
	assert.Equal(t, []string{"transfer.created", "receivable.written_off"}, bank.received())
}

func TestHub_Broadcast_EvictsSlowClient(t *testing.T) {
	hub := NewHub(0)

	slow := newFakeClient(t, "slow", "")
	slow.full = true
	fast := newFakeClient(t, "fast", "")
	require.NoError(t, hub.Register(slow))
	require.NoError(t, hub.Register(fast))

	hub.Publish(ExpenseCreated(nil, "kas"))

	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, slow.isClosed())
	assert.False(t, fast.isClosed())
	assert.Len(t, fast.received(), 1)
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(0)
	clients := make([]*fakeClient, 3)
	for i := range clients {
		clients[i] = newFakeClient(t, fmt.Sprintf("c-%d", i), "")
		require.NoError(t, hub.Register(clients[i]))
	}

	hub.CloseAll()

	assert.Equal(t, 0, hub.ClientCount())
	for _, c := range clients {
		assert.True(t, c.isClosed())
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(0)

	const n = 50
	clients := make([]*fakeClient, n)
	for i := range clients {
		clients[i] = newFakeClient(t, fmt.Sprintf("c-%d", i), fmt.Sprintf("acc-%d", i%5))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *fakeClient) {
			defer wg.Done()
			hub.Register(c)
		}(c)
	}
	wg.Wait()
	assert.Equal(t, n, hub.ClientCount())

	for i, c := range clients {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			hub.Broadcast(AccountBalanceChanged(nil, fmt.Sprintf("acc-%d", i%5)))
		}(i)
		go func(c *fakeClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(0)
	assert.NotPanics(t, func() {
		hub.Broadcast(AdvanceDeleted(nil, "kas"))
	})
}
