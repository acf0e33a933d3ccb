package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"slroute/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func receive(t *testing.T, c *Client) batchMessage {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg batchMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return batchMessage{}
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewClient("sub", 16)
	other := NewClient("other", 16)
	h.Register(sub)
	h.Register(other)
	h.Subscribe(sub, []string{"run-1"})
	h.Subscribe(other, []string{"run-2"})

	h.Broadcast(EntryBatch{
		RunID:         "run-1",
		WaypointIndex: 3,
		Entries:       []domain.RouteEntry{{SiteID: "9001", LineID: "14"}},
	})

	msg := receive(t, sub)
	if msg.Type != "entries" {
		t.Errorf("unexpected message type %q", msg.Type)
	}
	if msg.Payload.RunID != "run-1" || msg.Payload.WaypointIndex != 3 {
		t.Errorf("unexpected payload: %+v", msg.Payload)
	}
	if len(msg.Payload.Entries) != 1 || msg.Payload.Entries[0].SiteID != "9001" {
		t.Errorf("entries not carried: %+v", msg.Payload.Entries)
	}

	select {
	case data := <-other.Send:
		t.Errorf("client of another run received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDoneMarker(t *testing.T) {
	h := NewHub(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewClient("sub", 16)
	h.Register(sub)
	h.Subscribe(sub, []string{"run-1"})

	h.Broadcast(EntryBatch{RunID: "run-1", WaypointIndex: 5, Done: true, Partial: true})

	msg := receive(t, sub)
	if !msg.Payload.Done || !msg.Payload.Partial {
		t.Errorf("done/partial flags lost: %+v", msg.Payload)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewClient("sub", 16)
	h.Register(sub)
	h.Subscribe(sub, []string{"run-1"})
	h.Unsubscribe(sub, []string{"run-1"})

	h.Broadcast(EntryBatch{RunID: "run-1", WaypointIndex: 0})

	select {
	case data := <-sub.Send:
		t.Errorf("unsubscribed client received %s", data)
	case <-time.After(50 * time.Millisecond):
	}

	if len(sub.GetRuns()) != 0 {
		t.Errorf("client still tracks runs: %v", sub.GetRuns())
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	sub := NewClient("sub", 16)
	h.Register(sub)

	deadline := time.After(time.Second)
	for h.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.Unregister(sub)

	select {
	case _, ok := <-sub.Send:
		if ok {
			t.Error("expected closed channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
}

func TestBroadcastNeverBlocks(t *testing.T) {
	// No Run loop draining the queue: the buffered channel fills up and
	// further batches are dropped instead of stalling the caller.
	h := NewHub(testLogger)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Broadcast(EntryBatch{RunID: "run-1", WaypointIndex: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
}
