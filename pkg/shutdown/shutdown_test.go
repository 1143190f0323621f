package shutdown

import (
	"context"
	"testing"
	"time"
)

func TestShutdownRunsInReverseOrder(t *testing.T) {
	m := New(time.Second)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		m.Register(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	m.Shutdown()

	want := []int{2, 1, 0}
	if len(order) != len(want) {
		t.Fatalf("ran %d functions, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	m := New(time.Second)

	calls := 0
	m.Register(func(ctx context.Context) error {
		calls++
		return nil
	})

	m.Shutdown()
	m.Shutdown()

	if calls != 1 {
		t.Errorf("shutdown function called %d times, want 1", calls)
	}
}

func TestWatchContextPropagatesParentCancel(t *testing.T) {
	m := New(time.Second)

	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := m.WatchContext(parent)
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child context not canceled with parent")
	}
}
