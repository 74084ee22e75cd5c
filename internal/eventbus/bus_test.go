package eventbus

import (
	"reflect"
	"testing"
)

func TestDispatch_CallsListenersInOrder(t *testing.T) {
	bus := New()
	var calls []string
	bus.On(PageLoadingStart, func(Event) { calls = append(calls, "first") })
	bus.On(PageLoadingStart, func(Event) { calls = append(calls, "second") })
	bus.On(PageLoadingStop, func(Event) { calls = append(calls, "stop") })

	if n := bus.Dispatch(PageLoadingStart, Detail{Kind: KindInitial}); n != 2 {
		t.Fatalf("Dispatch() = %d, want 2", n)
	}
	if want := []string{"first", "second"}; !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestDispatch_PassesDetail(t *testing.T) {
	bus := New()
	var got Event
	bus.On(PageLoadingStop, func(e Event) { got = e })
	bus.Dispatch(PageLoadingStop, Detail{Kind: KindRedirect, To: "/rooms/2"})

	want := Event{Name: PageLoadingStop, Detail: Detail{Kind: KindRedirect, To: "/rooms/2"}}
	if got != want {
		t.Fatalf("event = %#v, want %#v", got, want)
	}
}

func TestOn_UnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	count := 0
	off := bus.On(PageLoadingStart, func(Event) { count++ })
	keep := 0
	bus.On(PageLoadingStart, func(Event) { keep++ })

	off()
	off()
	bus.Dispatch(PageLoadingStart, Detail{})

	if count != 0 {
		t.Fatalf("unsubscribed listener called %d times", count)
	}
	if keep != 1 {
		t.Fatalf("remaining listener called %d times, want 1", keep)
	}
	if n := bus.ListenerCount(PageLoadingStart); n != 1 {
		t.Fatalf("ListenerCount() = %d, want 1", n)
	}
}

func TestDispatch_NoListeners(t *testing.T) {
	if n := New().Dispatch("phx:unknown", Detail{}); n != 0 {
		t.Fatalf("Dispatch() = %d, want 0", n)
	}
}

func TestDispatch_ListenerMayUnsubscribeItself(t *testing.T) {
	bus := New()
	calls := 0
	var off func()
	off = bus.On(PageLoadingStop, func(Event) {
		calls++
		off()
	})
	bus.Dispatch(PageLoadingStop, Detail{})
	bus.Dispatch(PageLoadingStop, Detail{})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
