package services

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		discovered []string
		cached     []string
		want       ResourceDiff
	}{
		{
			name:       "empty cache",
			discovered: []string{"c", "a", "b"},
			want:       ResourceDiff{New: []string{"a", "b", "c"}, Unchanged: []string{}, Removed: []string{}},
		},
		{
			name:   "empty discovery",
			cached: []string{"a", "b"},
			want:   ResourceDiff{New: []string{}, Unchanged: []string{}, Removed: []string{"a", "b"}},
		},
		{
			name:       "mixed",
			discovered: []string{"a", "c", "d"},
			cached:     []string{"a", "b", "c"},
			want:       ResourceDiff{New: []string{"d"}, Unchanged: []string{"a", "c"}, Removed: []string{"b"}},
		},
		{
			name: "both empty",
			want: ResourceDiff{New: []string{}, Unchanged: []string{}, Removed: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(domain.NewResourceSet(tt.discovered...), domain.NewResourceSet(tt.cached...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiff_PartitionProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	universe := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	randomSet := func() domain.ResourceSet {
		s := domain.NewResourceSet()
		for _, id := range universe {
			if rng.Intn(2) == 0 {
				s.Add(id)
			}
		}
		return s
	}

	for i := 0; i < 200; i++ {
		a, b := randomSet(), randomSet()
		d := Diff(a, b)

		assert.ElementsMatch(t, a.Sorted(), append(append([]string{}, d.New...), d.Unchanged...))
		assert.ElementsMatch(t, b.Sorted(), append(append([]string{}, d.Unchanged...), d.Removed...))

		seen := map[string]int{}
		for _, part := range [][]string{d.New, d.Unchanged, d.Removed} {
			assert.True(t, sort.StringsAreSorted(part))
			for _, id := range part {
				seen[id]++
			}
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "resource %s appears in more than one partition", id)
		}
	}
}
