// Package hashed computes the fingerprints used to deduplicate subtrees.
//
// Every interned node carries three hashes: a structural hash that ignores
// labels, a label hash, and a syntax hash that combines both and serves as
// the lookup key of the node store. Children contribute through a wrapping
// sum, so a parent never re-walks finalized descendants.
package hashed

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// Base is the multiplier applied to the closing salt of a node, raised to the
// node size.
const Base uint32 = 33

var (
	enter = polyHash("enter")
	leave = polyHash("leave")
)

// Kind selects one of the three hashes of a node.
type Kind uint8

const (
	Syntax Kind = iota
	Struct
	Label
)

func (k Kind) String() string {
	switch k {
	case Struct:
		return "struct"
	case Label:
		return "label"
	default:
		return "syntax"
	}
}

// NodeHashes holds the three fingerprints of a subtree.
type NodeHashes struct {
	Struct uint32 `json:"struct"`
	Label  uint32 `json:"label"`
	Syntax uint32 `json:"syntax"`
}

// Get returns the hash of the requested kind.
func (h NodeHashes) Get(k Kind) uint32 {
	switch k {
	case Struct:
		return h.Struct
	case Label:
		return h.Label
	default:
		return h.Syntax
	}
}

// MostDiscriminating returns the hash used as the interning key.
func (h NodeHashes) MostDiscriminating() uint32 {
	return h.Syntax
}

// Acc folds a child's hashes into h.
func (h *NodeHashes) Acc(child NodeHashes) {
	h.Struct += child.Struct
	h.Label += child.Label
	h.Syntax += child.Syntax
}

func (h NodeHashes) String() string {
	return fmt.Sprintf("H: %d/%d/%d", h.Struct, h.Label, h.Syntax)
}

// InnerNodeHash is the GumTree rolling hash of a node whose children hashes
// sum to middle. All arithmetic wraps at 32 bits.
func InnerNodeHash(kind, label, size, middle uint32) uint32 {
	prefix := (1*31+kind)*31 + label
	left := prefix*31 + enter
	right := prefix*31 + leave
	return left + middle + right*pow(Base, size)
}

// pow is wrapping exponentiation by squaring.
func pow(b, e uint32) uint32 {
	r := uint32(1)
	for e > 0 {
		if e&1 == 1 {
			r *= b
		}
		b *= b
		e >>= 1
	}
	return r
}

func polyHash(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = 31*h + uint32(s[i])
	}
	return h
}

// Prepare hashes a string into the 32-bit domain of InnerNodeHash.
func Prepare(s string) uint32 {
	return clamp(xxh3.HashString(s))
}

// PrepareBytes is Prepare for byte slices.
func PrepareBytes(b []byte) uint32 {
	return clamp(xxh3.Hash(b))
}

// PrepareInt hashes an integer the same way Prepare hashes strings.
func PrepareInt(v uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return clamp(xxh3.Hash(buf[:]))
}

func clamp(h uint64) uint32 {
	return uint32(h) ^ uint32(h>>32)
}

// Builder computes the hashes of a node once its children are known.
// The syntax hash is available right away so that a store lookup can happen
// before the other two are materialized.
type Builder struct {
	children NodeHashes
	kind     uint32
	label    uint32
	size     uint32
	syntax   uint32
}

// NewBuilder prepares the hashes of a node of the given kind hash and label.
// size is the number of non-spacing nodes in the subtree, the node included.
func NewBuilder(children NodeHashes, kind uint32, label string, size uint32) Builder {
	b := Builder{
		children: children,
		kind:     kind,
		label:    Prepare(label),
		size:     PrepareInt(uint64(size)),
	}
	b.syntax = InnerNodeHash(b.kind, b.label, b.size, children.Syntax)
	return b
}

// MostDiscriminating returns the syntax hash.
func (b Builder) MostDiscriminating() uint32 {
	return b.syntax
}

// Build materializes the three hashes.
func (b Builder) Build() NodeHashes {
	return NodeHashes{
		Struct: InnerNodeHash(b.kind, 0, b.size, b.children.Struct),
		Label:  InnerNodeHash(b.kind, b.label, b.size, b.children.Label),
		Syntax: b.syntax,
	}
}
