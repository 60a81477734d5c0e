package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 99: 1, 100: 2, 199: 2, 250: 3, 1000: 11}
	for points, want := range cases {
		assert.Equal(t, want, Level(points), "points=%d", points)
	}
	assert.Equal(t, 1, Level(-5))
}

func TestLevelMonotonic(t *testing.T) {
	prev := Level(0)
	for p := 1; p <= 5000; p++ {
		cur := Level(p)
		assert.Equal(t, p/100+1, cur)
		if cur < prev {
			t.Fatalf("level decreased at %d: %d -> %d", p, prev, cur)
		}
		prev = cur
	}
}

func TestRankTiers(t *testing.T) {
	tests := []struct {
		points int
		want   string
	}{
		{0, "Newbie"},
		{99, "Newbie"},
		{100, "Member"},
		{299, "Member"},
		{300, "Core"},
		{699, "Core"},
		{700, "Legend"},
		{100000, "Legend"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rank(tt.points), "points=%d", tt.points)
	}
}

func TestRankExhaustive(t *testing.T) {
	known := map[string]bool{"Newbie": true, "Member": true, "Core": true, "Legend": true}
	for p := 0; p <= 2000; p++ {
		r := Rank(p)
		assert.True(t, known[r], "unexpected rank %q at %d", r, p)

		matches := 0
		if p < 100 {
			matches++
		}
		if p >= 100 && p < 300 {
			matches++
		}
		if p >= 300 && p < 700 {
			matches++
		}
		if p >= 700 {
			matches++
		}
		assert.Equal(t, 1, matches)
	}
}

func TestOf(t *testing.T) {
	s := Of(312)
	assert.Equal(t, Standing{Points: 312, Level: 4, Rank: "Core"}, s)
}
