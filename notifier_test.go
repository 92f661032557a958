package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
)

type sentMessage struct {
	chatID int64
	text   string
	at     time.Time
}

// fakeMessenger records every send and replays a per-chat error script;
// once a chat's script is exhausted, sends succeed.
type fakeMessenger struct {
	mu     sync.Mutex
	sends  []sentMessage
	script map[int64][]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{script: make(map[int64][]error)}
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMessage{chatID: chatID, text: text, at: time.Now()})
	if queue := m.script[chatID]; len(queue) > 0 {
		err := queue[0]
		m.script[chatID] = queue[1:]
		return err
	}
	return nil
}

func (m *fakeMessenger) sendsTo(chatID int64) []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMessage
	for _, s := range m.sends {
		if s.chatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func testNotifier(messenger Messenger, store Store, recipients []int64) *Notifier {
	n := NewNotifier(messenger, store, recipients, 0)
	n.baseBackoff = 60 * time.Millisecond
	return n
}

func testListing(key string) Listing {
	return Listing{Key: key, Source: SourceIDCian, URL: "https://example.com/" + key, Rooms: 1, Price: 40000, Address: "addr", Area: 30}
}

func TestBroadcastDeliversAndMarks(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := testNotifier(messenger, store, []int64{1, 2})

	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if !result.DeliveredKeys["cian:1"] {
		t.Error("listing not reported delivered")
	}
	for _, chatID := range []int64{1, 2} {
		if got := len(messenger.sendsTo(chatID)); got != 1 {
			t.Errorf("chat %d received %d sends, want 1", chatID, got)
		}
		delivered, _ := store.HasDelivered("cian:1", chatID)
		if !delivered {
			t.Errorf("delivery to chat %d not marked", chatID)
		}
	}
}

func TestBroadcastSkipsAlreadyDelivered(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	if err := store.MarkDelivered("cian:1", 1); err != nil {
		t.Fatal(err)
	}
	n := testNotifier(messenger, store, []int64{1, 2})

	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if got := len(messenger.sendsTo(1)); got != 0 {
		t.Errorf("chat 1 got %d sends despite prior delivery", got)
	}
	if got := len(messenger.sendsTo(2)); got != 1 {
		t.Errorf("chat 2 got %d sends, want 1", got)
	}
	if !result.DeliveredKeys["cian:1"] {
		t.Error("delivery to the remaining chat not reported")
	}
}

func TestRateLimitPausesOnlyThatRecipient(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := testNotifier(messenger, store, []int64{1, 2})
	// RetryAfter of 0 falls back to baseBackoff
	messenger.script[1] = []error{&bot.TooManyRequestsError{Message: "too many requests", RetryAfter: 0}}

	start := time.Now()
	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if !result.DeliveredKeys["cian:1"] {
		t.Error("listing not delivered after rate limit cleared")
	}

	// the other recipient proceeds immediately
	chat2 := messenger.sendsTo(2)
	if len(chat2) != 1 {
		t.Fatalf("chat 2 sends = %d, want 1", len(chat2))
	}
	if waited := chat2[0].at.Sub(start); waited >= n.baseBackoff {
		t.Errorf("chat 2 was blocked for %v by chat 1's rate limit", waited)
	}

	// the limited recipient retries the same message only after the pause
	chat1 := messenger.sendsTo(1)
	if len(chat1) != 2 {
		t.Fatalf("chat 1 sends = %d, want 2 (original + retry)", len(chat1))
	}
	if gap := chat1[1].at.Sub(chat1[0].at); gap < n.baseBackoff {
		t.Errorf("retry after %v, want at least %v", gap, n.baseBackoff)
	}
	if chat1[0].text != chat1[1].text {
		t.Error("retry sent a different message")
	}
}

func TestTransientFailureRetryBound(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := testNotifier(messenger, store, []int64{1})
	transient := errors.New("connection reset")
	messenger.script[1] = []error{transient, transient, transient, transient, transient}

	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if got := len(messenger.sendsTo(1)); got != maxSendAttempts {
		t.Errorf("send attempts = %d, want %d", got, maxSendAttempts)
	}
	if result.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", result.Abandoned)
	}
	if delivered, _ := store.HasDelivered("cian:1", 1); delivered {
		t.Error("abandoned delivery was marked delivered")
	}
}

func TestTransientFailureThenSuccess(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := testNotifier(messenger, store, []int64{1})
	messenger.script[1] = []error{errors.New("i/o timeout")}

	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if !result.DeliveredKeys["cian:1"] {
		t.Error("listing not delivered after transient failure cleared")
	}
	if got := len(messenger.sendsTo(1)); got != 2 {
		t.Errorf("send attempts = %d, want 2", got)
	}
}

func TestPermanentFailureAbandonsImmediately(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := testNotifier(messenger, store, []int64{1, 2})
	messenger.script[1] = []error{bot.ErrorForbidden}

	result, err := n.Broadcast(context.Background(), []Listing{testListing("cian:1")})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if got := len(messenger.sendsTo(1)); got != 1 {
		t.Errorf("permanent failure retried: %d sends", got)
	}
	if result.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", result.Abandoned)
	}
	if delivered, _ := store.HasDelivered("cian:1", 1); delivered {
		t.Error("failed delivery was marked delivered")
	}
	// the other recipient is unaffected
	if !result.DeliveredKeys["cian:1"] {
		t.Error("delivery to healthy chat not reported")
	}
}

func TestDeliveriesSerializedPerRecipient(t *testing.T) {
	messenger := newFakeMessenger()
	store := NewMemoryStore()
	n := NewNotifier(messenger, store, []int64{1}, 30*time.Millisecond)

	listings := []Listing{testListing("cian:1"), testListing("cian:2")}
	if _, err := n.Broadcast(context.Background(), listings); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	sends := messenger.sendsTo(1)
	if len(sends) != 2 {
		t.Fatalf("sends = %d, want 2", len(sends))
	}
	if gap := sends[1].at.Sub(sends[0].at); gap < 30*time.Millisecond {
		t.Errorf("messages %v apart, want at least the configured delay", gap)
	}
}

func TestBroadcastTextReachesAllRecipients(t *testing.T) {
	messenger := newFakeMessenger()
	n := testNotifier(messenger, NewMemoryStore(), []int64{1, 2, 3})

	n.BroadcastText(context.Background(), "summary")

	for _, chatID := range []int64{1, 2, 3} {
		sends := messenger.sendsTo(chatID)
		if len(sends) != 1 || sends[0].text != "summary" {
			t.Errorf("chat %d sends = %+v", chatID, sends)
		}
	}
}
