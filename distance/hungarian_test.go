package distance

import (
	"math/rand"
	"testing"
)

func bruteForceAssignment(cost [][]int64) int64 {
	n := len(cost)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := int64(-1)
	var permute func(k int)
	permute = func(k int) {
		if k == n {
			var total int64
			for i, j := range perm {
				total += cost[i][j]
			}
			if best < 0 || total < best {
				best = total
			}
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			permute(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	permute(0)
	return best
}

func TestMinCostAssignmentSmall(t *testing.T) {
	cost := [][]int64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	assignment, total := minCostAssignment(cost)
	if total != 5 {
		t.Fatalf("expected total 5, got %d (%v)", total, assignment)
	}

	seen := make(map[int]bool)
	var check int64
	for i, j := range assignment {
		if seen[j] {
			t.Fatalf("column %d assigned twice: %v", j, assignment)
		}
		seen[j] = true
		check += cost[i][j]
	}
	if check != total {
		t.Errorf("assignment cost %d does not match total %d", check, total)
	}

	if a, total := minCostAssignment(nil); a != nil || total != 0 {
		t.Errorf("empty matrix: %v %d", a, total)
	}
}

func TestMinCostAssignmentMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(6)
		cost := make([][]int64, n)
		for i := range cost {
			cost[i] = make([]int64, n)
			for j := range cost[i] {
				cost[i][j] = int64(rng.Intn(300))
			}
		}
		_, got := minCostAssignment(cost)
		if want := bruteForceAssignment(cost); got != want {
			t.Fatalf("iteration %d: expected %d, got %d for %v", iter, want, got, cost)
		}
	}
}
