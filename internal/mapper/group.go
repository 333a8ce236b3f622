package mapper

import (
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/agentic-research/ngstate/internal/annotation"
	"github.com/agentic-research/ngstate/internal/table"
)

type groupKey struct {
	kind string
	text string
}

// grouper collects records by group key in order of first appearance.
// Null and non-finite keys leave a record ungrouped. Keys of different
// kinds that print the same (the string "3" and the number 3) stay
// separate groups and are logged.
type grouper struct {
	mapper  string
	order   []groupKey
	members map[groupKey][]annotation.Record
	kinds   map[string]string
	warned  map[string]bool
}

func newGrouper(mapper string) *grouper {
	return &grouper{
		mapper:  mapper,
		members: map[groupKey][]annotation.Record{},
		kinds:   map[string]string{},
		warned:  map[string]bool{},
	}
}

func (g *grouper) add(raw any, rec annotation.Record) {
	key, ok := canonicalKey(raw)
	if !ok {
		return
	}
	if prev, seen := g.kinds[key.text]; seen && prev != key.kind && !g.warned[key.text] {
		g.warned[key.text] = true
		log.Printf("%s: group key %q appears as both %s and %s; keeping them as separate groups", g.mapper, key.text, prev, key.kind)
	} else if !seen {
		g.kinds[key.text] = key.kind
	}
	if _, exists := g.members[key]; !exists {
		g.order = append(g.order, key)
	}
	g.members[key] = append(g.members[key], rec)
}

func (g *grouper) collections(opts annotation.GroupOptions) ([]annotation.Record, error) {
	out := make([]annotation.Record, 0, len(g.order))
	for _, key := range g.order {
		c, err := annotation.Group(g.members[key], opts)
		if err != nil {
			return nil, fmt.Errorf("%s: group %q: %w", g.mapper, key.text, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func canonicalKey(v any) (groupKey, bool) {
	if table.IsNull(v) {
		return groupKey{}, false
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return groupKey{}, false
		}
		return groupKey{kind: "string", text: x}, true
	case bool:
		return groupKey{kind: "bool", text: strconv.FormatBool(x)}, true
	}
	if f, ok := table.Float(v); ok {
		if math.IsInf(f, 0) {
			return groupKey{}, false
		}
		switch x := v.(type) {
		case int64:
			return groupKey{kind: "number", text: strconv.FormatInt(x, 10)}, true
		case uint64:
			return groupKey{kind: "number", text: strconv.FormatUint(x, 10)}, true
		}
		return groupKey{kind: "number", text: strconv.FormatFloat(f, 'f', -1, 64)}, true
	}
	return groupKey{kind: fmt.Sprintf("%T", v), text: fmt.Sprint(v)}, true
}
