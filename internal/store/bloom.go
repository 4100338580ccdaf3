package store

import "github.com/zeebo/xxh3"

const bloomHashes = 3

// Bloom is a fixed 256 bit filter over the identifier labels of a subtree.
type Bloom [4]uint64

// Add inserts a name.
func (b *Bloom) Add(name string) {
	h := xxh3.HashString128(name)
	for i := uint64(0); i < bloomHashes; i++ {
		bit := (h.Lo + i*h.Hi) & 255
		b[bit>>6] |= 1 << (bit & 63)
	}
}

// MayContain reports whether name may have been added. False positives are
// possible, false negatives are not.
func (b *Bloom) MayContain(name string) bool {
	h := xxh3.HashString128(name)
	for i := uint64(0); i < bloomHashes; i++ {
		bit := (h.Lo + i*h.Hi) & 255
		if b[bit>>6]&(1<<(bit&63)) == 0 {
			return false
		}
	}
	return true
}

// Union merges o into b.
func (b *Bloom) Union(o *Bloom) {
	if o == nil {
		return
	}
	for i := range b {
		b[i] |= o[i]
	}
}

// Empty reports whether nothing was added.
func (b *Bloom) Empty() bool {
	return b[0]|b[1]|b[2]|b[3] == 0
}
