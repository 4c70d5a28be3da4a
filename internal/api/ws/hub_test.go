package ws

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetag/internal/models"
)

func notify(userID uuid.UUID) *models.Notification {
	return &models.Notification{
		ID:     uuid.New(),
		UserID: userID,
		Type:   models.NotificationClusteringReady,
	}
}

func TestBroadcastTargetsOnlyOwner(t *testing.T) {
	h := NewHub()
	go h.Run()

	owner := uuid.New()
	other := uuid.New()
	a := &Client{send: make(chan []byte, 4), userID: owner.String()}
	b := &Client{send: make(chan []byte, 4), userID: other.String()}
	h.register <- a
	h.register <- b

	h.BroadcastNotification(notify(owner))

	select {
	case msg := <-a.send:
		assert.Contains(t, string(msg), owner.String())
	case <-time.After(time.Second):
		t.Fatal("owner never received the notification")
	}
	select {
	case <-b.send:
		t.Fatal("notification delivered to the wrong user")
	default:
	}
}

func TestBroadcastEvictsStalledClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	owner := uuid.New()
	stuck := &Client{send: make(chan []byte, 1), userID: owner.String()}
	stuck.send <- []byte("backlog")
	h.register <- stuck

	h.BroadcastNotification(notify(owner))

	// The full buffer forces an eviction.
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, present := h.clients[stuck]
		return !present
	}, time.Second, 5*time.Millisecond)

	// Backlog drains, then the channel reports closed.
	<-stuck.send
	_, open := <-stuck.send
	require.False(t, open)

	// A late unregister for the already evicted client must be a no-op,
	// not a second close.
	h.unregister <- stuck

	h.mu.RLock()
	_, present := h.clients[stuck]
	h.mu.RUnlock()
	assert.False(t, present)
}
