package matchers

const (
	qgramSize = 3
	qgramPad  = "##"
)

// QGramDistance is the normalized 3-gram distance between two labels, padded
// with "##" on both sides. It is 0 for equal labels and 1 for labels with no
// gram in common.
func QGramDistance(a, b string) float64 {
	if a == b {
		return 0
	}
	if a == "" || b == "" {
		return 1
	}
	a = qgramPad + a + qgramPad
	b = qgramPad + b + qgramPad

	counts := make(map[string]int, len(a))
	for i := 0; i+qgramSize <= len(a); i++ {
		counts[a[i:i+qgramSize]]++
	}
	for i := 0; i+qgramSize <= len(b); i++ {
		counts[b[i:i+qgramSize]]--
	}
	d := 0
	for _, c := range counts {
		if c < 0 {
			c = -c
		}
		d += c
	}
	return float64(float32(d) / float32(len(a)+len(b)-2*qgramSize+2))
}
