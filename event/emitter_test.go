package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversToAllSubscribers(t *testing.T) {
	var e Emitter[int]
	var gotA, gotB []int

	e.Subscribe(func(v int) { gotA = append(gotA, v) })
	e.Subscribe(func(v int) { gotB = append(gotB, v) })

	e.Emit(1)
	e.Emit(2)

	assert.Equal(t, []int{1, 2}, gotA)
	assert.Equal(t, []int{1, 2}, gotB)
}

func TestEmitterUnsubscribe(t *testing.T) {
	var e Emitter[string]
	var got []string

	sub := e.Subscribe(func(v string) { got = append(got, v) })
	e.Emit("a")
	e.Unsubscribe(sub)
	e.Emit("b")

	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 0, e.Len())
}

func TestStateTransitionNotifiesWithPrevious(t *testing.T) {
	s := NewState("down")
	var got []Transition[string]
	s.OnTransition(func(tr Transition[string]) { got = append(got, tr) })

	s.Set("down") // no-op, same state
	assert.Empty(t, got)

	s.Set("up")
	s.Set("up") // no-op again
	s.Set("down")

	want := []Transition[string]{
		{State: "up", Was: "down"},
		{State: "down", Was: "up"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "down", s.Current())
}
