// Package fanout implements a bounded multi-producer/multi-consumer
// broadcast with drop-on-lag, standing in for tokio::sync::broadcast
// (spec.md §4.G's broadcast contract: ring of capacity 16, slow
// consumers drop tail frames with a "lagged by N" signal, a
// zero-subscriber publish is a no-op).
package fanout

import (
	"context"
	"sync"
	"sync/atomic"
)

const capacity = 16

// Message is one published frame together with Lagged, the number of
// frames dropped from this subscriber's queue since the previous frame
// was published to it. A drop made to fit a frame into a full queue is
// counted on the following frame, not on the frame that caused it.
type Message struct {
	Data   []byte
	Lagged uint64
}

// Bus is a broadcast point with bounded per-subscriber buffering.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscriber)}
}

// Subscriber receives published messages until Unsubscribe is called.
type Subscriber struct {
	id     uint64
	ch     chan Message
	lagged uint64 // atomic
}

// Subscribe registers a new subscriber with a capacity-16 queue.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &Subscriber{id: b.nextID, ch: make(chan Message, capacity)}
	b.nextID++
	b.subs[s.id] = s
	return s
}

// Unsubscribe removes a subscriber; subsequent publishes no longer
// reach it.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s.id)
}

// HasSubscribers reports whether publishing would reach anyone; the
// spectrometer pump uses this to skip the block-FP conversion entirely
// when idle.
func (b *Bus) HasSubscribers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) > 0
}

// Publish delivers data to every current subscriber. A subscriber
// whose queue is full has its oldest queued frame dropped, and its
// lagged counter incremented, to make room for the new one. A bus with
// no subscribers does nothing (no allocation, no locking of
// per-subscriber state beyond the subscriber-map lock).
func (b *Bus) Publish(data []byte) {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.send(data)
	}
}

func (s *Subscriber) send(data []byte) {
	msg := Message{Data: data, Lagged: atomic.SwapUint64(&s.lagged, 0)}
	select {
	case s.ch <- msg:
		return
	default:
	}

	// Queue full: drop the oldest frame to make room.
	select {
	case <-s.ch:
		atomic.AddUint64(&s.lagged, 1)
	default:
	}
	select {
	case s.ch <- msg:
	default:
		// Another goroutine raced us and refilled the queue; the
		// frame is dropped and will be reflected in the next lagged
		// count instead.
		atomic.AddUint64(&s.lagged, 1)
	}
}

// Recv blocks until a message is available or ctx is done.
func (s *Subscriber) Recv(ctx context.Context) (Message, error) {
	select {
	case msg := <-s.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
