package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_TryPop(t *testing.T) {
	q := New[testItem]()

	// Pop from empty queue
	if _, ok := q.TryPop(); ok {
		t.Error("expected ok=false on empty queue")
	}

	q.Push(testItem{ID: 1, Name: "first"}, testItem{ID: 2, Name: "second"})
	first, ok := q.TryPop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v (ok=%v)", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	second, ok := q.TryPop()
	if !ok || second.ID != 2 {
		t.Errorf("expected {2, second}, got %+v", second)
	}
	if !q.Empty() {
		t.Error("expected empty queue after popping everything")
	}
}

func TestQueue_FIFOAcrossCompaction(t *testing.T) {
	q := New[int]()
	next := 0
	want := 0

	// interleave pushes and pops so the consumed prefix is compacted several times
	for round := 0; round < 50; round++ {
		for i := 0; i < 10; i++ {
			q.Push(next)
			next++
		}
		for i := 0; i < 7; i++ {
			got, ok := q.TryPop()
			if !ok {
				t.Fatalf("unexpected empty queue at round %d", round)
			}
			if got != want {
				t.Fatalf("expected %d, got %d", want, got)
			}
			want++
		}
	}

	for {
		got, ok := q.TryPop()
		if !ok {
			break
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
		want++
	}
	if want != next {
		t.Errorf("popped %d items, pushed %d", want, next)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})
	q.TryPop()

	items := q.Drain()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != 2 || items[1].ID != 3 {
		t.Errorf("unexpected order: %+v", items)
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}

	// queue is reusable after Drain
	q.Push(testItem{ID: 4})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	numGoroutines := 10
	itemsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < itemsPerGoroutine; j++ {
				q.Push(base*itemsPerGoroutine + j)
			}
		}(i)
	}
	wg.Wait()

	expected := numGoroutines * itemsPerGoroutine
	if q.Len() != expected {
		t.Errorf("expected %d items, got %d", expected, q.Len())
	}
}
