package idgen

import (
	"regexp"
	"sync"
	"testing"
	"time"
)

var doctorCode = regexp.MustCompile(`^DOC\d{13}\d{3}$`)

func TestNext_Format(t *testing.T) {
	id := Next(PrefixDoctor)
	if !doctorCode.MatchString(id) {
		t.Errorf("unexpected doctor code format: %s", id)
	}
	inv := Next(PrefixInvoice)
	if !regexp.MustCompile(`^INV\d+$`).MatchString(inv) {
		t.Errorf("unexpected invoice format: %s", inv)
	}
}

func TestNext_NoDuplicatesUnderFrozenClock(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := NewWithClock(func() time.Time { return fixed })

	seen := make(map[string]bool)
	for i := 0; i < 2500; i++ {
		id := g.Next(PrefixDoctor)
		if seen[id] {
			t.Fatalf("duplicate id %s after %d calls", id, i)
		}
		seen[id] = true
	}
}

func TestNext_ClockStepsBack(t *testing.T) {
	ms := int64(1700000000500)
	g := NewWithClock(func() time.Time { return time.UnixMilli(ms) })
	first := g.Next(PrefixMerchant)
	ms -= 100
	second := g.Next(PrefixMerchant)
	if first == second {
		t.Fatalf("expected distinct ids, got %s twice", first)
	}
	if second[:16] != first[:16] {
		t.Errorf("expected the earlier millisecond to be reused: %s vs %s", first, second)
	}
}

func TestNext_Concurrent(t *testing.T) {
	g := New()
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := g.Next(PrefixInvoice)
				mu.Lock()
				if seen[id] {
					mu.Unlock()
					t.Errorf("duplicate id %s", id)
					return
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*per {
		t.Errorf("expected %d ids, got %d", workers*per, len(seen))
	}
}
