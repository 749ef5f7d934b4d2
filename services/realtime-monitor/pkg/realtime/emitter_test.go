package realtime

import (
	"encoding/json"
	"testing"
)

func TestEmitter_OnOffOrder(t *testing.T) {
	e := NewEmitter()
	var order []int
	off1 := e.On("x", func(json.RawMessage) { order = append(order, 1) })
	e.On("x", func(json.RawMessage) { order = append(order, 2) })

	e.Emit("x", nil)
	off1()
	off1()
	e.Emit("x", nil)

	want := []int{1, 2, 2}
	if len(order) != len(want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v; want %v", order, want)
		}
	}
	if e.ListenerCount("x") != 1 {
		t.Errorf("ListenerCount = %d; want 1", e.ListenerCount("x"))
	}
}

func TestEmitter_OffDuringEmit(t *testing.T) {
	e := NewEmitter()
	calls := 0
	var off func()
	off = e.On("x", func(json.RawMessage) {
		calls++
		off()
	})
	e.On("x", func(json.RawMessage) { calls++ })

	e.Emit("x", nil)
	e.Emit("x", nil)
	if calls != 3 {
		t.Fatalf("calls = %d; want 3", calls)
	}
}
