package annotation

import (
	"errors"
	"fmt"
	"slices"
)

// MaxTags is the largest tag vocabulary a layer may declare.
const MaxTags = 10

// DefaultBindings is the ordered key alphabet tag tools are bound to.
var DefaultBindings = []string{"Q", "W", "E", "R", "T", "A", "S", "D", "F", "G"}

var (
	ErrTooManyTags          = errors.New("too many tags")
	ErrInsufficientBindings = errors.New("insufficient key bindings")
)

// TooManyTagsError reports a vocabulary above MaxTags.
type TooManyTagsError struct {
	Count int
}

func (e *TooManyTagsError) Error() string {
	return fmt.Sprintf("%d distinct tags exceeds the limit of %d", e.Count, MaxTags)
}

func (e *TooManyTagsError) Unwrap() error { return ErrTooManyTags }

// InsufficientBindingsError reports a vocabulary larger than the key alphabet.
type InsufficientBindingsError struct {
	Tags int
	Keys int
}

func (e *InsufficientBindingsError) Error() string {
	return fmt.Sprintf("%d tags but only %d key bindings", e.Tags, e.Keys)
}

func (e *InsufficientBindingsError) Unwrap() error { return ErrInsufficientBindings }

// Vocabulary is a layer's ordered list of distinct tags.
type Vocabulary struct {
	tags []string
}

// NewVocabulary deduplicates tags, keeping first occurrence order.
func NewVocabulary(tags []string) (*Vocabulary, error) {
	v := &Vocabulary{}
	if err := v.Extend(tags); err != nil {
		return nil, err
	}
	return v, nil
}

// Extend appends tags not already present. On overflow the vocabulary is
// left unchanged.
func (v *Vocabulary) Extend(tags []string) error {
	next := slices.Clone(v.tags)
	for _, t := range tags {
		if t != "" && !slices.Contains(next, t) {
			next = append(next, t)
		}
	}
	if len(next) > MaxTags {
		return &TooManyTagsError{Count: len(next)}
	}
	v.tags = next
	return nil
}

// Tags returns the vocabulary in order.
func (v *Vocabulary) Tags() []string {
	if v == nil {
		return nil
	}
	return slices.Clone(v.tags)
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.tags)
}

// Clone returns a copy.
func (v *Vocabulary) Clone() *Vocabulary {
	if v == nil {
		return nil
	}
	return &Vocabulary{tags: slices.Clone(v.tags)}
}

// PropertyID is the annotation property id for vocabulary slot i.
func PropertyID(i int) string {
	return fmt.Sprintf("tag%d", i)
}

// ToolID is the generated tool id for vocabulary slot i.
func ToolID(i int) string {
	return "tagTool_" + PropertyID(i)
}

// Props packs tags into the fixed-width vector indexed by vocabulary
// position. Tags outside the vocabulary are ignored.
func (v *Vocabulary) Props(tags []string) []any {
	out := make([]any, v.Len())
	for i, t := range v.tags {
		if slices.Contains(tags, t) {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}

// Properties renders the annotationProperties wire list.
func (v *Vocabulary) Properties() []any {
	out := make([]any, v.Len())
	for i, t := range v.tags {
		out[i] = map[string]any{"id": PropertyID(i), "type": "uint8", "tag": t}
	}
	return out
}

// ToolIDs lists the generated tool ids in vocabulary order.
func (v *Vocabulary) ToolIDs() []string {
	out := make([]string, v.Len())
	for i := range out {
		out[i] = ToolID(i)
	}
	return out
}

// Bindings maps keys to tool ids in order. Nil keys means DefaultBindings.
func (v *Vocabulary) Bindings(keys []string) (map[string]any, error) {
	if keys == nil {
		keys = DefaultBindings
	}
	if v.Len() > len(keys) {
		return nil, &InsufficientBindingsError{Tags: v.Len(), Keys: len(keys)}
	}
	out := make(map[string]any, v.Len())
	for i := range v.tags {
		out[keys[i]] = ToolID(i)
	}
	return out, nil
}
