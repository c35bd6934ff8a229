package cart

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
)

func sumLines(c *Cart) float64 {
	var s float64
	for _, it := range c.Items {
		s += it.Price * float64(it.Quantity)
	}
	return math.Round(s*100) / 100
}

func TestCart_TotalInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := &Cart{}
	for i := 0; i < 500; i++ {
		id := strconv.Itoa(rng.Intn(6))
		switch rng.Intn(4) {
		case 0:
			c.Add(Item{ItemID: id, Price: float64(rng.Intn(100000)) / 100}, rng.Intn(3)+1)
		case 1:
			c.Remove(id)
		case 2:
			c.SetQuantity(id, rng.Intn(5)-1)
		case 3:
			if rng.Intn(20) == 0 {
				c.Clear()
			}
		}
		if c.TotalAmount != sumLines(c) {
			t.Fatalf("step %d: total %v != sum %v", i, c.TotalAmount, sumLines(c))
		}
		for _, it := range c.Items {
			if it.Quantity <= 0 {
				t.Fatalf("step %d: item %s kept with quantity %d", i, it.ItemID, it.Quantity)
			}
		}
	}
}

func TestCart_AddMerges(t *testing.T) {
	c := &Cart{}
	c.Add(Item{ItemID: "a", Price: 100}, 1)
	c.Add(Item{ItemID: "a", Price: 100}, 2)
	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Fatalf("expected one line with quantity 3, got %+v", c.Items)
	}
	if c.TotalAmount != 300 || c.ItemCount != 3 {
		t.Errorf("total=%v count=%d", c.TotalAmount, c.ItemCount)
	}
}

func TestCart_ZeroQuantityEqualsRemove(t *testing.T) {
	a := &Cart{}
	b := &Cart{}
	for _, c := range []*Cart{a, b} {
		c.Add(Item{ItemID: "x", Price: 10}, 2)
		c.Add(Item{ItemID: "y", Price: 5}, 1)
	}
	a.SetQuantity("x", 0)
	b.Remove("x")
	if len(a.Items) != len(b.Items) || a.TotalAmount != b.TotalAmount {
		t.Errorf("SetQuantity(0) = %+v, Remove = %+v", a, b)
	}
}

func TestCart_MissingItem(t *testing.T) {
	c := &Cart{}
	if c.Remove("nope") {
		t.Error("Remove of missing item should report false")
	}
	if c.SetQuantity("nope", 3) {
		t.Error("SetQuantity of missing item should report false")
	}
}
