package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256String(t *testing.T) {
	got := SHA256String("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if got != want {
		t.Errorf("SHA256String(hello) = %s, want %s", got, want)
	}
}

func TestSHA256Short(t *testing.T) {
	hash := SHA256([]byte("hello"))

	tests := []struct {
		n    int
		want string
	}{
		{8, hash[:8]},
		{16, hash[:16]},
		{32, hash[:32]},
		{64, hash},  // full hash
		{100, hash}, // exceeds length, returns full
	}

	for _, tt := range tests {
		got := SHA256Short([]byte("hello"), tt.n)
		if got != tt.want {
			t.Errorf("SHA256Short(hello, %d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestRevisionID(t *testing.T) {
	id1 := RevisionID("src/main.go", "abc123")
	id2 := RevisionID("src/main.go", "abc123")

	if id1 != id2 {
		t.Errorf("RevisionID not deterministic: %s != %s", id1, id2)
	}

	id3 := RevisionID("src/main.go", "abc124")
	if id1 == id3 {
		t.Errorf("RevisionID collision: %s == %s", id1, id3)
	}

	if len(id1) != 16 {
		t.Errorf("RevisionID length = %d, want 16", len(id1))
	}

	for _, c := range id1 {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("RevisionID contains non-hex character: %c", c)
		}
	}
}

func TestDiffKey(t *testing.T) {
	k := DiffKey(1, 2, "default")
	if k != DiffKey(1, 2, "default") {
		t.Errorf("DiffKey not deterministic")
	}
	for _, other := range []string{DiffKey(2, 1, "default"), DiffKey(1, 2, "lazy"), DiffKey(1, 3, "default")} {
		if other == k {
			t.Errorf("DiffKey collision: %s", k)
		}
	}
}

func BenchmarkSHA256(b *testing.B) {
	data := []byte("benchmark test data for hashing performance measurement")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SHA256(data)
	}
}

func BenchmarkDiffKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DiffKey(uint32(i), 200, "default")
	}
}
