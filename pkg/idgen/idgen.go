// Package idgen generates the human-readable references used across the
// platform: DOC/MER professional codes, INV invoice ids and ORD order numbers.
//
// A reference is PREFIX + unix milliseconds + a 3-digit random suffix. The
// generator remembers which suffixes it handed out for the current
// millisecond, so references produced by one process never repeat.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const suffixSpace = 1000

const (
	PrefixDoctor   = "DOC"
	PrefixMerchant = "MER"
	PrefixInvoice  = "INV"
	PrefixOrder    = "ORD"
)

// Generator is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	now    func() time.Time
	lastMS int64
	used   map[int]bool
}

func New() *Generator {
	return &Generator{now: time.Now, used: make(map[int]bool)}
}

// NewWithClock is used by tests to pin time.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now, used: make(map[int]bool)}
}

// Next returns a new reference for prefix.
func (g *Generator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		ms := g.now().UnixMilli()
		if ms < g.lastMS {
			// Clock stepped back; keep issuing under the last millisecond.
			ms = g.lastMS
		}
		if ms != g.lastMS {
			g.lastMS = ms
			g.used = make(map[int]bool)
		}
		if len(g.used) < suffixSpace {
			n := g.pickSuffix()
			g.used[n] = true
			return fmt.Sprintf("%s%d%03d", prefix, ms, n)
		}
		// Every suffix for this millisecond is taken.
		g.lastMS = ms + 1
		g.used = make(map[int]bool)
	}
}

func (g *Generator) pickSuffix() int {
	for {
		v, err := rand.Int(rand.Reader, big.NewInt(suffixSpace))
		n := 0
		if err == nil {
			n = int(v.Int64())
		}
		if !g.used[n] {
			return n
		}
		if err != nil {
			// No entropy; walk to the first free slot.
			for i := 0; i < suffixSpace; i++ {
				if !g.used[i] {
					return i
				}
			}
		}
	}
}

var defaultGenerator = New()

// Next draws from the process-wide generator.
func Next(prefix string) string {
	return defaultGenerator.Next(prefix)
}
