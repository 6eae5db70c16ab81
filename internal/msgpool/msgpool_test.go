// © 2025 dbgbuilder authors. MIT License.
package msgpool

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPushPopFIFO(t *testing.T) {
	p := New[int](4)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := p.Push(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 4; i++ {
		v, ok, err := p.Pop(ctx)
		if err != nil || !ok {
			t.Fatalf("Pop() = %v, %v, %v", v, ok, err)
		}
		if v != i {
			t.Errorf("Pop() = %d, want %d", v, i)
		}
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	p := New[int](1)
	ctx := context.Background()
	if err := p.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		_ = p.Push(ctx, 2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Push should have blocked on a full pool")
	case <-time.After(50 * time.Millisecond):
	}

	if _, _, err := p.Pop(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Push should have unblocked after a Pop freed a slot")
	}
}

func TestCloseDrainsThenReturnsNotOK(t *testing.T) {
	p := New[int](4)
	ctx := context.Background()
	if err := p.Push(ctx, 7); err != nil {
		t.Fatal(err)
	}
	p.Close()

	v, ok, err := p.Pop(ctx)
	if err != nil || !ok || v != 7 {
		t.Fatalf("Pop() after Close should still drain queued items, got %v %v %v", v, ok, err)
	}

	_, ok, err = p.Pop(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Pop() on a closed, drained pool should report ok=false")
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	p := New[int](4)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		_, ok, _ := p.Pop(ctx)
		if ok {
			t.Error("Pop on an empty, closed pool should report ok=false")
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close should wake a goroutine blocked in Pop")
	}
}

func TestPushAfterCloseReturnsErrClosed(t *testing.T) {
	p := New[int](4)
	p.Close()
	if err := p.Push(context.Background(), 1); err != ErrClosed {
		t.Errorf("Push after Close = %v, want ErrClosed", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := New[int](4)
	p.Close()
	p.Close()
}

func TestOccupancyAndCapacity(t *testing.T) {
	p := New[int](8)
	if p.Capacity() != 8 {
		t.Errorf("Capacity() = %d, want 8", p.Capacity())
	}
	if p.Occupancy() != 0 {
		t.Errorf("Occupancy() = %d, want 0", p.Occupancy())
	}
	_ = p.Push(context.Background(), 1)
	if p.Occupancy() != 1 {
		t.Errorf("Occupancy() = %d, want 1", p.Occupancy())
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	p := New[int](16)
	ctx := context.Background()
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := p.Push(ctx, i); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	sum := 0
	for i := 0; i < n; i++ {
		v, ok, err := p.Pop(ctx)
		if err != nil || !ok {
			t.Fatalf("Pop() = %v, %v, %v", v, ok, err)
		}
		sum += v
	}
	wg.Wait()

	want := n * (n - 1) / 2
	if sum != want {
		t.Errorf("sum of consumed items = %d, want %d", sum, want)
	}
}
