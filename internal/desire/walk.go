package desire

import (
	"container/heap"
	"iter"
)

// cursor is one desire's position in the walk.
type cursor struct {
	tier  int
	index int // position in the input; breaks ties
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].tier != h[j].tier {
		return h[i].tier < h[j].tier
	}
	return h[i].index < h[j].index
}
func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)   { *h = append(*h, x.(cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// Walker is a pull-based k-way merge over the occurrences of several
// desires. It yields (desire, tier) pairs in non-decreasing tier order, ties
// going to the desire given first. With an infinite desire in the set the
// walk never ends on its own; the caller decides when to stop.
type Walker struct {
	desires []*Desire
	cursors cursorHeap
}

// NewWalker positions a cursor at the first occurrence of every desire.
func NewWalker(desires []*Desire) *Walker {
	w := &Walker{
		desires: desires,
		cursors: make(cursorHeap, 0, len(desires)),
	}
	for i, d := range desires {
		w.cursors = append(w.cursors, cursor{tier: d.StartTier, index: i})
	}
	heap.Init(&w.cursors)
	return w
}

// Next returns the next occurrence, or ok=false once every desire is exhausted.
func (w *Walker) Next() (d *Desire, tier int, ok bool) {
	if len(w.cursors) == 0 {
		return nil, Exhausted, false
	}
	c := w.cursors[0]
	d = w.desires[c.index]
	if next := d.GetNextTier(c.tier); next != Exhausted {
		w.cursors[0].tier = next
		heap.Fix(&w.cursors, 0)
	} else {
		heap.Pop(&w.cursors)
	}
	return d, c.tier, true
}

// Peek returns the tier Next would yield without advancing.
func (w *Walker) Peek() (int, bool) {
	if len(w.cursors) == 0 {
		return Exhausted, false
	}
	return w.cursors[0].tier, true
}

// WalkUpTiers returns the tier walk as a sequence. Each range over the
// result starts a fresh walk.
func WalkUpTiers(desires []*Desire) iter.Seq2[*Desire, int] {
	return func(yield func(*Desire, int) bool) {
		w := NewWalker(desires)
		for {
			d, tier, ok := w.Next()
			if !ok || !yield(d, tier) {
				return
			}
		}
	}
}
