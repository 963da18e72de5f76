package chatws

import (
	"testing"
	"time"

	"github.com/muhammaddzaki123/NutripathBack/internal/models"
)

func TestPushAfterUnregisterDropsFrame(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, "u1")
	hub.Register(client)
	hub.Unregister(client)

	// Unregister is handled on the run loop; wait for it to close the queue.
	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatalf("unexpected frame queued before shutdown")
		}
	case <-time.After(time.Second):
		t.Fatalf("send queue was not closed on unregister")
	}

	// A session goroutine may still be flushing updates at this point; the
	// frame must be dropped, not crash the process.
	client.Push(Frame{Type: "conversation", ChatID: "n1-u1", Unread: 1})
}

func TestSlowClientEvictionIsSafeForConcurrentPush(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil, "u1")
	hub.clients["u1"] = map[*Client]struct{}{client: {}}

	for i := 0; i < cap(client.send); i++ {
		client.Push(Frame{Type: "conversation", ChatID: "n1-u1"})
	}

	// The queue is full, so delivery evicts the client and closes its queue.
	hub.sendToParticipant("u1", []byte(`{"type":"message"}`))
	if _, ok := hub.clients["u1"]; ok {
		t.Fatalf("expected slow client evicted")
	}

	client.Push(Frame{Type: "conversation", ChatID: "n1-u1"})
	client.closeSend()
}

func TestDeliverReachesBothParticipantsOnce(t *testing.T) {
	hub := NewHub()
	user := NewClient(hub, nil, "u1")
	nutritionist := NewClient(hub, nil, "n1")
	hub.clients["u1"] = map[*Client]struct{}{user: {}}
	hub.clients["n1"] = map[*Client]struct{}{nutritionist: {}}

	hub.deliver(&models.Message{
		ID:             "m1",
		ChatID:         "n1-u1",
		SenderRole:     models.RoleUser,
		UserID:         "u1",
		NutritionistID: "n1",
		Text:           "halo",
		CreatedAt:      time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
	})

	if got := len(user.send); got != 1 {
		t.Errorf("expected one frame for the user, got %d", got)
	}
	if got := len(nutritionist.send); got != 1 {
		t.Errorf("expected one frame for the nutritionist, got %d", got)
	}
}
