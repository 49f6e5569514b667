package fanout

import (
	"context"
	"testing"
	"time"
)

func TestPublishNoSubscribersIsNoop(t *testing.T) {
	b := New()
	b.Publish([]byte("frame"))
	if b.HasSubscribers() {
		t.Fatal("expected no subscribers")
	}
}

func TestSubscribeReceives(t *testing.T) {
	b := New()
	s := b.Subscribe()
	b.Publish([]byte("frame1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := s.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(msg.Data) != "frame1" {
		t.Fatalf("got %q want frame1", msg.Data)
	}
	if msg.Lagged != 0 {
		t.Fatalf("expected lagged=0, got %d", msg.Lagged)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	s := b.Subscribe()
	b.Unsubscribe(s)
	b.Publish([]byte("frame"))
	if b.HasSubscribers() {
		t.Fatal("expected no subscribers after Unsubscribe")
	}
}

func TestSlowConsumerDropsOldestAndReportsLagged(t *testing.T) {
	b := New()
	s := b.Subscribe()

	// Fill the queue past capacity without draining.
	for i := 0; i < capacity+5; i++ {
		b.Publish([]byte{byte(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var firstData []byte
	var totalLagged uint64
	received := 0
	for {
		msg, err := s.Recv(ctx)
		if err != nil {
			break
		}
		if received == 0 {
			firstData = msg.Data
		}
		received++
		totalLagged += msg.Lagged
		if len(b.subs[s.id].ch) == 0 {
			break
		}
	}
	if received != capacity {
		t.Fatalf("received %d messages, want %d", received, capacity)
	}
	// frames 0..4 were dropped, oldest first, to fit frames 16..20
	if len(firstData) != 1 || firstData[0] != 5 {
		t.Fatalf("first received frame = %v, want [5]", firstData)
	}
	// frames 17..20 each report one drop; the drop made to fit frame 20
	// is carried to the next publish
	if totalLagged != 4 {
		t.Fatalf("total lagged reported = %d, want 4", totalLagged)
	}
}

func TestMultipleSubscribersIndependentQueues(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Publish([]byte("x"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := s1.Recv(ctx); err != nil {
		t.Fatalf("s1 Recv failed: %v", err)
	}
	if _, err := s2.Recv(ctx); err != nil {
		t.Fatalf("s2 Recv failed: %v", err)
	}
}
