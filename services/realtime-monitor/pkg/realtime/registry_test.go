package realtime

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestRegistry_SubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	cb := Func(func(Update) {})

	if !r.Subscribe("market:BTCUSDT:1h", cb) {
		t.Fatal("first subscribe must report newly intended")
	}
	if r.Subscribe("market:BTCUSDT:1h", cb) {
		t.Fatal("second subscribe must not report newly intended")
	}
	if got := len(r.CallbacksFor("market:BTCUSDT:1h")); got != 1 {
		t.Fatalf("callbacks = %d; want 1", got)
	}
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	a, b, c := Func(func(Update) {}), Func(func(Update) {}), Func(func(Update) {})
	r.Subscribe("ch", b)
	r.Subscribe("ch", a)
	r.Subscribe("ch", c)
	r.Subscribe("ch", a)

	got := r.CallbacksFor("ch")
	want := []*Callback{b, a, c}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch")
	}
}

func TestRegistry_ReleaseOnLastCallback(t *testing.T) {
	r := NewRegistry()
	a, b := Func(func(Update) {}), Func(func(Update) {})
	r.Subscribe("ch", a)
	r.Subscribe("ch", b)

	if r.Unsubscribe("ch", a) {
		t.Fatal("channel released while callbacks remain")
	}
	if !r.IsIntended("ch") {
		t.Fatal("channel must stay intended")
	}
	if !r.Unsubscribe("ch", b) {
		t.Fatal("removing last callback must release channel")
	}
	if r.IsIntended("ch") || len(r.IntendedChannels()) != 0 {
		t.Fatal("released channel still intended")
	}
	if r.CallbacksFor("ch") != nil {
		t.Fatal("released channel still has callbacks")
	}
}

func TestRegistry_UnsubscribeAll(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("ch", Func(func(Update) {}))
	r.Subscribe("ch", Func(func(Update) {}))

	if !r.Unsubscribe("ch", nil) {
		t.Fatal("full unsubscribe must release")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d; want 0", r.Len())
	}
}

func TestRegistry_UnknownUnsubscribeIsNoop(t *testing.T) {
	r := NewRegistry()
	stranger := Func(func(Update) {})
	if r.Unsubscribe("never", stranger) || r.Unsubscribe("never", nil) {
		t.Fatal("unknown channel must be a no-op")
	}

	r.Subscribe("ch", Func(func(Update) {}))
	if r.Unsubscribe("ch", stranger) {
		t.Fatal("unknown callback must be a no-op")
	}
	if !r.IsIntended("ch") || len(r.CallbacksFor("ch")) != 1 {
		t.Fatal("registry changed by no-op unsubscribe")
	}
}

func TestRegistry_PinnedChannel(t *testing.T) {
	r := NewRegistry()
	cb := Func(func(Update) {})

	r.Subscribe("ch", nil)
	r.Subscribe("ch", cb)
	if r.Unsubscribe("ch", cb) {
		t.Fatal("pinned channel released by callback removal")
	}
	if !r.IsIntended("ch") {
		t.Fatal("pinned channel must stay intended")
	}
	if !r.Unsubscribe("ch", nil) {
		t.Fatal("full unsubscribe must release pinned channel")
	}
}

func TestRegistry_IntendedChannelsSnapshot(t *testing.T) {
	r := NewRegistry()
	for _, ch := range []string{"c", "a", "b"} {
		r.Subscribe(ch, nil)
	}
	r.Subscribe("a", nil)
	r.Unsubscribe("c", nil)
	r.Subscribe("c", nil)

	got := r.IntendedChannels()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IntendedChannels = %v; want %v", got, want)
	}
}

func TestRegistry_ConcurrentSubscribe(t *testing.T) {
	r := NewRegistry()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		newly int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Subscribe(fmt.Sprintf("ch-%d", i%8), Func(func(Update) {})) {
				mu.Lock()
				newly++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if newly != 8 {
		t.Errorf("newly intended = %d; want 8", newly)
	}
	if r.Len() != 8 {
		t.Errorf("Len = %d; want 8", r.Len())
	}
}
