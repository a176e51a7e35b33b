package diff_test

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
)

func wideState(n int) map[string]any {
	s := make(map[string]any, n)
	for i := 0; i < n; i++ {
		s["k"+strconv.Itoa(i)] = map[string]any{"v": i, "list": []int{i, i + 1}}
	}
	return s
}

// Scoped cost should stay flat as the untouched part of the state grows.
func BenchmarkDiffScoped(b *testing.B) {
	for _, n := range []int{10, 1000, 100000} {
		b.Run(fmt.Sprintf("size=%d", n), func(b *testing.B) {
			before := wideState(n)
			after := diff.Clone(before)
			after["k0"].(map[string]any)["v"] = -1
			scope := domain.ScopeOf("k0.v")

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := diff.Diff(before, after, scope); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDiffFull(b *testing.B) {
	for _, n := range []int{10, 1000} {
		b.Run(fmt.Sprintf("size=%d", n), func(b *testing.B) {
			before := wideState(n)
			after := diff.Clone(before)
			after["k0"].(map[string]any)["v"] = -1

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := diff.Diff(before, after, domain.FullDiff); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
