package repo_test

import (
	"testing"

	"github.com/hamed0406/serverwatch/internal/repo"
	"github.com/hamed0406/serverwatch/internal/repo/memory"
	pg "github.com/hamed0406/serverwatch/internal/repo/postgres"
	"github.com/hamed0406/serverwatch/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()
	var _ repo.Store = (*pg.Store)(nil)
	var _ repo.Store = (*sqlite.Store)(nil)
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: 10, -3: 10, 1: 1, 50: 50, 9000: 500}
	for in, want := range cases {
		if got := repo.NormalizeLimit(in, 500); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
