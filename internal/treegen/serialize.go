package treegen

import (
	"io"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

// Serialize returns the source text of the subtree rooted at id: the labels
// of its leaves, spacing included, in order.
func Serialize(s *store.Stores, id store.NodeID) string {
	var sb strings.Builder
	// strings.Builder never fails
	_ = SerializeTo(&sb, s, id)
	return sb.String()
}

// SerializeTo writes the source text of the subtree rooted at id to w.
func SerializeTo(w io.Writer, s *store.Stores, id store.NodeID) error {
	v := s.Resolve(id)
	if v.HasChildren() {
		for _, c := range v.Children() {
			if err := SerializeTo(w, s, c); err != nil {
				return err
			}
		}
		return nil
	}
	if s.Types.Is(v.Type(), types.File) {
		return nil
	}
	l, ok := v.Label()
	if !ok {
		return nil
	}
	_, err := io.WriteString(w, s.Labels.Resolve(l))
	return err
}
