package ringbuf

import (
	"reflect"
	"sync"
	"testing"
)

func TestBuffer_PartialFill(t *testing.T) {
	b := New[int](3)
	b.Add(1)
	b.Add(2)
	if got := b.Snapshot(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("Snapshot = %v", got)
	}
	if b.Len() != 2 || b.Cap() != 3 {
		t.Fatalf("Len/Cap = %d/%d", b.Len(), b.Cap())
	}
}

func TestBuffer_EvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	if got := b.Snapshot(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("Snapshot = %v, want [3 4 5]", got)
	}
	if b.Total() != 5 {
		t.Errorf("Total = %d, want 5", b.Total())
	}
}

func TestBuffer_MinimumCapacity(t *testing.T) {
	b := New[string](0)
	b.Add("a")
	b.Add("b")
	if got := b.Snapshot(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("Snapshot = %v", got)
	}
}

func TestBuffer_ConcurrentAdd(t *testing.T) {
	b := New[int](50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(i)
			}
		}()
	}
	wg.Wait()
	if b.Len() != 50 || b.Total() != 800 {
		t.Fatalf("Len/Total = %d/%d", b.Len(), b.Total())
	}
}
