// Package datamap implements deferred data binding: layers register
// placeholders for tables that arrive later, and Resolve applies them in
// priority order.
package datamap

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/agentic-research/ngstate/internal/table"
)

// ErrUnmapped is returned when serializing a layer with pending data.
var ErrUnmapped = errors.New("unmapped data")

const (
	// SourcePriority is used for sources and segment lists, which other
	// layers may depend on.
	SourcePriority = 1
	// DefaultPriority is used for annotation rows.
	DefaultPriority = 10
)

// DataMap is a placeholder for a table supplied later under Key. The empty
// key matches a table passed on its own.
type DataMap struct {
	Key      string
	Priority int

	pinned bool
}

// New returns a DataMap at DefaultPriority.
func New(key string) DataMap {
	return DataMap{Key: key, Priority: DefaultPriority}
}

// WithPriority returns a copy of d pinned at priority p. A pinned priority
// survives OrPriority, even when p equals DefaultPriority.
func (d DataMap) WithPriority(p int) DataMap {
	d.Priority = p
	d.pinned = true
	return d
}

// OrPriority returns d at priority p unless d was pinned by WithPriority.
func (d DataMap) OrPriority(p int) DataMap {
	if !d.pinned {
		d.Priority = p
	}
	return d
}

// Env carries state-wide context into apply functions.
type Env struct {
	ViewerResolution []float64
}

// ApplyFunc binds a table to target, which is the layer that registered the
// binding. Taking the target as an argument keeps bindings valid across
// deep copies of the layer.
type ApplyFunc func(target any, t *table.Table, env Env) error

// Binding is a registered DataMap.
type Binding struct {
	DataMap
	Attribute string
	Apply     ApplyFunc
	seq       int
}

// UnmappedDataError names a layer attribute still waiting for data.
type UnmappedDataError struct {
	Layer     string
	Attribute string
	Key       string
}

func (e *UnmappedDataError) Error() string {
	key := e.Key
	if key == "" {
		key = "<default>"
	}
	return fmt.Sprintf("layer %q: %s is waiting for data %q", e.Layer, e.Attribute, key)
}

func (e *UnmappedDataError) Unwrap() error { return ErrUnmapped }

// Registry holds a layer's pending bindings.
type Registry struct {
	pending []Binding
	next    int
}

// Register adds a binding for attribute. Every call gets its own slot, so
// two bindings for the same attribute both resolve, in registration order.
func (r *Registry) Register(dm DataMap, attribute string, fn ApplyFunc) {
	r.pending = append(r.pending, Binding{DataMap: dm, Attribute: attribute, Apply: fn, seq: r.next})
	r.next++
}

// Pending returns the unresolved bindings in registration order.
func (r *Registry) Pending() []Binding {
	if r == nil {
		return nil
	}
	return slices.Clone(r.pending)
}

// Len returns the number of unresolved bindings.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.pending)
}

// Clone copies the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return &Registry{}
	}
	return &Registry{pending: slices.Clone(r.pending), next: r.next}
}

func (r *Registry) remove(seq int) {
	r.pending = slices.DeleteFunc(r.pending, func(b Binding) bool { return b.seq == seq })
}

// Target is anything that owns a Registry.
type Target interface {
	Name() string
	DataMaps() *Registry
}

type entry struct {
	target Target
	index  int
	b      Binding
}

// Resolve applies every pending binding whose key is present in data,
// ordered by priority, then target order, then registration order within a
// target. Bindings whose key is absent stay pending.
func Resolve(targets []Target, data map[string]*table.Table, env Env) error {
	var entries []entry
	for i, t := range targets {
		for _, b := range t.DataMaps().Pending() {
			entries = append(entries, entry{target: t, index: i, b: b})
		}
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Or(
			cmp.Compare(a.b.Priority, b.b.Priority),
			cmp.Compare(a.index, b.index),
			cmp.Compare(a.b.seq, b.b.seq),
		)
	})

	for _, e := range entries {
		t, ok := data[e.b.Key]
		if !ok {
			continue
		}
		if err := e.b.Apply(e.target, t, env); err != nil {
			return fmt.Errorf("layer %q: %s: %w", e.target.Name(), e.b.Attribute, err)
		}
		e.target.DataMaps().remove(e.b.seq)
	}
	return nil
}

// Check returns an UnmappedDataError for the first pending binding.
func Check(targets []Target) error {
	for _, t := range targets {
		if p := t.DataMaps().Pending(); len(p) > 0 {
			return &UnmappedDataError{Layer: t.Name(), Attribute: p[0].Attribute, Key: p[0].Key}
		}
	}
	return nil
}
