package bus_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/itzBaowy/ecms-livechat/internal/bus"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestSubscribeIsIdempotentPerTopic(t *testing.T) {
	r := bus.NewRegistry(newTestLogger())

	first, added := r.Add("/topic/chat-room/7", func(body []byte) {})
	if !added {
		t.Fatal("first Add should report a new subscription")
	}
	second, added := r.Add("/topic/chat-room/7", func(body []byte) {})
	if added {
		t.Error("second Add for the same topic must be a no-op")
	}
	if first.ID != second.ID {
		t.Error("duplicate Add returned a different subscription")
	}
	if r.Len() != 1 {
		t.Errorf("expected exactly one live subscription, got %d", r.Len())
	}
}

func TestLookupByIDAndTopic(t *testing.T) {
	r := bus.NewRegistry(newTestLogger())
	sub, _ := r.Add("/topic/staff-lobby", func(body []byte) {})

	if got, ok := r.FindByID(sub.ID); !ok || got.Topic != "/topic/staff-lobby" {
		t.Error("FindByID failed to resolve subscription")
	}
	if got, ok := r.FindByTopic("/topic/staff-lobby"); !ok || got.ID != sub.ID {
		t.Error("FindByTopic failed to resolve subscription")
	}
	if _, ok := r.FindByID("unknown"); ok {
		t.Error("FindByID resolved an unknown id")
	}
}

func TestClearTolerants(t *testing.T) {
	r := bus.NewRegistry(newTestLogger())

	// Clearing an empty registry is fine.
	if removed := r.Clear(); len(removed) != 0 {
		t.Errorf("expected nothing removed, got %d", len(removed))
	}

	r.Add("/topic/chat-room/1", func(body []byte) {})
	r.Add("/topic/chat-room/2", func(body []byte) {})
	r.Add("/topic/chat-room/3", func(body []byte) {})

	removed := r.Clear()
	if len(removed) != 3 {
		t.Fatalf("expected 3 removed subscriptions, got %d", len(removed))
	}
	if r.Len() != 0 {
		t.Errorf("registry should be empty after Clear, has %d", r.Len())
	}

	// Cleared topics can be re-added without duplication.
	if _, added := r.Add("/topic/chat-room/1", func(body []byte) {}); !added {
		t.Error("re-adding a cleared topic should succeed")
	}
}
