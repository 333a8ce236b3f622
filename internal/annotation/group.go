package annotation

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// GroupOptions controls how a collection aggregates its members' segments.
type GroupOptions struct {
	// Gather sets the collection's segments to the union of its members'.
	Gather bool
	// Share also rewrites every member's segments to that union.
	Share bool
	// Collapse starts the collection with its children hidden.
	Collapse bool
}

// Group builds a collection over members and points each member at it.
// Members must already carry ids.
func Group(members []Record, opts GroupOptions) (*Collection, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("group needs at least one member")
	}
	first := members[0].Common()
	c := &Collection{
		Base: Base{
			ID:         NewID(),
			Resolution: slices.Clone(first.Resolution),
		},
		Source:          members[0].Anchor(),
		Entries:         make([]string, 0, len(members)),
		ChildrenVisible: !opts.Collapse,
	}

	union := roaring64.New()
	for _, m := range members {
		b := m.Common()
		if b.ID == "" {
			return nil, fmt.Errorf("group member has no id")
		}
		b.ParentID = c.ID
		c.Entries = append(c.Entries, b.ID)
		union.AddMany(b.Segments)
	}

	if opts.Gather || opts.Share {
		c.Segments = union.ToArray()
	}
	if opts.Share {
		for _, m := range members {
			m.Common().Segments = union.ToArray()
		}
	}
	return c, nil
}
