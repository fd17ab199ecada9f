package observe

import (
	"reflect"
	"testing"
)

func TestFeed_EmitOrder(t *testing.T) {
	var f Feed[int]
	var got []string
	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })
	f.Subscribe(func(v int) { got = append(got, "c") })

	f.Emit(1)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestFeed_Unsubscribe(t *testing.T) {
	var f Feed[string]
	var got []string
	unsubA := f.Subscribe(func(v string) { got = append(got, "a:"+v) })
	f.Subscribe(func(v string) { got = append(got, "b:"+v) })

	f.Emit("1")
	unsubA()
	unsubA()
	f.Emit("2")

	if want := []string{"a:1", "b:1", "b:2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if f.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.Len())
	}
}

func TestFeed_UnsubscribeDuringEmit(t *testing.T) {
	var f Feed[int]
	var got []string
	var unsubA func()
	unsubA = f.Subscribe(func(int) {
		got = append(got, "a")
		unsubA()
	})
	f.Subscribe(func(int) { got = append(got, "b") })

	f.Emit(0)
	f.Emit(0)

	if want := []string{"a", "b", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFeed_EmitWithoutSubscribers(t *testing.T) {
	var f Feed[struct{}]
	f.Emit(struct{}{})
	if f.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.Len())
	}
}
