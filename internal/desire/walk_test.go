package desire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	target string
	tier   int
}

func TestWalkUpTiers_MergesInTierOrder(t *testing.T) {
	a := NewNeed("a", Stretched(1, 0, 2, 6), true)
	b := NewNeed("b", Single(1, 3), true)
	c := NewNeed("c", Stretched(1, 2, 4, 10), true)

	var got []step
	for d, tier := range WalkUpTiers([]*Desire{a, b, c}) {
		got = append(got, step{d.Target(), tier})
	}

	assert.Equal(t, []step{
		{"a", 0}, {"a", 2}, {"c", 2}, {"b", 3}, {"a", 4}, {"a", 6}, {"c", 6}, {"c", 10},
	}, got)
}

func TestWalkUpTiers_TiesFollowInputOrder(t *testing.T) {
	first := NewNeed("x", Single(1, 5), true)
	second := NewNeed("y", Single(1, 5), true)

	var got []string
	for d := range WalkUpTiers([]*Desire{second, first}) {
		got = append(got, d.Target())
	}
	assert.Equal(t, []string{"y", "x"}, got)
}

func TestWalkUpTiers_InfiniteStopsOnCallerCondition(t *testing.T) {
	inf := NewWant("rest", Infinite(1, 0, 3))
	bounded := NewWant("food", Stretched(1, 1, 1, 3))

	var tiers []int
	for _, tier := range WalkUpTiers([]*Desire{inf, bounded}) {
		tiers = append(tiers, tier)
		if len(tiers) == 8 {
			break
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 3, 6, 9, 12}, tiers)
}

func TestWalkUpTiers_Restartable(t *testing.T) {
	seq := WalkUpTiers([]*Desire{NewNeed("a", Stretched(1, 0, 1, 2), true)})

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())
}

func TestWalker_PeekAndExhaustion(t *testing.T) {
	w := NewWalker([]*Desire{NewNeed("a", Single(2, 7), true)})

	tier, ok := w.Peek()
	require.True(t, ok)
	assert.Equal(t, 7, tier)

	d, tier, ok := w.Next()
	require.True(t, ok)
	assert.Equal(t, "a", d.Target())
	assert.Equal(t, 7, tier)

	_, ok = w.Peek()
	assert.False(t, ok)
	_, tier, ok = w.Next()
	assert.False(t, ok)
	assert.Equal(t, Exhausted, tier)
}

func TestWalker_Empty(t *testing.T) {
	_, _, ok := NewWalker(nil).Next()
	assert.False(t, ok)
}
