package distance

import "math"

// minCostAssignment solves the assignment problem on a square cost matrix and returns, for each
// row, the column it is matched to together with the total cost. O(n^3) Hungarian algorithm with
// row and column potentials.
func minCostAssignment(cost [][]int64) ([]int, int64) {
	n := len(cost)
	if n == 0 {
		return nil, 0
	}

	const inf = math.MaxInt64 / 4
	// 1-indexed, index 0 is the virtual start column
	u := make([]int64, n+1)
	v := make([]int64, n+1)
	p := make([]int, n+1) // p[j] is the row matched to column j
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]int64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = inf
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := int64(inf)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	rowToCol := make([]int, n)
	var total int64
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			rowToCol[p[j]-1] = j - 1
			total += cost[p[j]-1][j-1]
		}
	}
	return rowToCol, total
}
