package bus

import (
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Ch():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestBus_PrefixMatching(t *testing.T) {
	b := New()
	interactionSub := b.Subscribe("interaction.")
	defer b.Unsubscribe(interactionSub)
	allSub := b.Subscribe("")
	defer b.Unsubscribe(allSub)

	b.Publish(TopicInteractionReceived, "ping")
	b.Publish(TopicRateLimited, RateLimitedEvent{RemoteAddr: "10.0.0.1"})

	if ev := recv(t, interactionSub); ev.Topic != TopicInteractionReceived || ev.Payload != "ping" || ev.At.IsZero() {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case ev := <-interactionSub.Ch():
		t.Fatalf("unexpected event on prefix subscriber: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	if ev := recv(t, allSub); ev.Topic != TopicInteractionReceived {
		t.Fatalf("first topic = %q", ev.Topic)
	}
	if ev := recv(t, allSub); ev.Topic != TopicRateLimited {
		t.Fatalf("second topic = %q", ev.Topic)
	}
}

func TestBus_DropsWhenBufferFull(t *testing.T) {
	b := New()
	sub := b.Subscribe("interaction.")
	defer b.Unsubscribe(sub)

	for i := 0; i < defaultBufferSize+10; i++ {
		b.Publish(TopicInteractionCompleted, i)
	}

	count := 0
	for len(sub.Ch()) > 0 {
		<-sub.Ch()
		count++
	}
	if count != defaultBufferSize {
		t.Fatalf("received %d events, expected %d", count, defaultBufferSize)
	}
	if sub.Dropped() != 10 || b.Dropped() != 10 {
		t.Fatalf("dropped sub=%d bus=%d, want 10", sub.Dropped(), b.Dropped())
	}
}

func TestBus_NilIsInert(t *testing.T) {
	var b *Bus
	b.Publish(TopicInteractionReceived, "ignored")
	if b.Dropped() != 0 {
		t.Fatal("nil bus reported drops")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	if b.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", b.SubscriberCount())
	}

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	if b.SubscriberCount() != 0 {
		t.Fatalf("count = %d, want 0", b.SubscriberCount())
	}
	if _, ok := <-sub.Ch(); ok {
		t.Fatal("expected closed channel")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	const publishers = 10
	const each = 5

	var wg sync.WaitGroup
	for g := 0; g < publishers; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				b.Publish(TopicSideChannelCall, SideChannelEvent{InteractionID: "x", OK: id%2 == 0})
			}
		}(g)
	}
	wg.Wait()

	if got := len(sub.Ch()); got != publishers*each {
		t.Fatalf("received %d events, want %d", got, publishers*each)
	}
}
