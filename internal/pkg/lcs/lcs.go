// Package lcs computes longest common subsequences under a custom equality.
package lcs

// Pair is a matched position in both sequences.
type Pair struct {
	A, B int
}

// Pairs returns the positions of a longest common subsequence of a and b,
// in increasing order. Ties skip elements of a before elements of b.
func Pairs[A, B any](a []A, b []B, eq func(A, B) bool) []Pair {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}
	// suffix lengths: l[i][j] = LCS of a[i:] and b[j:]
	w := m + 1
	l := make([]int32, (n+1)*w)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case eq(a[i], b[j]):
				l[i*w+j] = l[(i+1)*w+j+1] + 1
			case l[(i+1)*w+j] >= l[i*w+j+1]:
				l[i*w+j] = l[(i+1)*w+j]
			default:
				l[i*w+j] = l[i*w+j+1]
			}
		}
	}

	out := make([]Pair, 0, l[0])
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case eq(a[i], b[j]):
			out = append(out, Pair{i, j})
			i++
			j++
		case l[(i+1)*w+j] >= l[i*w+j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

// Len returns the length of a longest common subsequence.
func Len[A, B any](a []A, b []B, eq func(A, B) bool) int {
	return len(Pairs(a, b, eq))
}
