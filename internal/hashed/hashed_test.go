package hashed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPow(t *testing.T) {
	assert.Equal(t, uint32(1), pow(Base, 0))
	assert.Equal(t, uint32(33), pow(Base, 1))
	assert.Equal(t, uint32(33*33*33), pow(Base, 3))

	// wraps like repeated multiplication
	want := uint32(1)
	for i := 0; i < 40; i++ {
		want *= Base
	}
	assert.Equal(t, want, pow(Base, 40))
}

func TestPolyHash(t *testing.T) {
	// same recurrence as java.lang.String#hashCode
	assert.Equal(t, uint32(96667352), polyHash("enter"))
	assert.Equal(t, uint32(0), polyHash(""))
}

func TestInnerNodeHash_SizeZero(t *testing.T) {
	kind, label, middle := uint32(7), uint32(11), uint32(1000)
	prefix := (31+kind)*31 + label
	want := prefix*31 + enter + middle + prefix*31 + leave
	assert.Equal(t, want, InnerNodeHash(kind, label, 0, middle))
}

func TestBuilder_StructIgnoresLabel(t *testing.T) {
	kind := Prepare("go:identifier")

	a := NewBuilder(NodeHashes{}, kind, "foo", 1).Build()
	b := NewBuilder(NodeHashes{}, kind, "bar", 1).Build()

	assert.Equal(t, a.Struct, b.Struct)
	assert.NotEqual(t, a.Label, b.Label)
	assert.NotEqual(t, a.Syntax, b.Syntax)
}

func TestBuilder_KindMatters(t *testing.T) {
	a := NewBuilder(NodeHashes{}, Prepare("go:identifier"), "x", 1).Build()
	b := NewBuilder(NodeHashes{}, Prepare("go:field_identifier"), "x", 1).Build()

	assert.NotEqual(t, a.Struct, b.Struct)
	assert.NotEqual(t, a.Syntax, b.Syntax)
}

func TestBuilder_Deterministic(t *testing.T) {
	children := NodeHashes{Struct: 1, Label: 2, Syntax: 3}
	kind := Prepare("block")

	b1 := NewBuilder(children, kind, "", 4)
	b2 := NewBuilder(children, kind, "", 4)

	assert.Equal(t, b1.MostDiscriminating(), b2.MostDiscriminating())
	assert.Equal(t, b1.Build(), b2.Build())
	assert.Equal(t, b1.MostDiscriminating(), b1.Build().Syntax)
}

func TestNodeHashes_Acc(t *testing.T) {
	h := NodeHashes{Struct: ^uint32(0), Label: 1, Syntax: 2}
	h.Acc(NodeHashes{Struct: 2, Label: 3, Syntax: 4})

	assert.Equal(t, NodeHashes{Struct: 1, Label: 4, Syntax: 6}, h)
	assert.Equal(t, h.Syntax, h.MostDiscriminating())
	assert.Equal(t, h.Struct, h.Get(Struct))
	assert.Equal(t, h.Label, h.Get(Label))
}
