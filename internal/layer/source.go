package layer

import (
	"fmt"
	"maps"
	"slices"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/mapper"
	"github.com/agentic-research/ngstate/internal/table"
)

// Source is a data origin attached to one layer.
type Source struct {
	URL        string
	Resolution []float64
	Transform  *coords.Transform
	// Subsources enables or disables named subsources (meshes, skeletons).
	Subsources map[string]bool
	// EnableDefaultSubsources defaults to true when nil.
	EnableDefaultSubsources *bool
}

// Clone returns a deep copy.
func (s Source) Clone() Source {
	c := s
	c.Resolution = slices.Clone(s.Resolution)
	c.Transform = s.Transform.Clone()
	c.Subsources = maps.Clone(s.Subsources)
	if s.EnableDefaultSubsources != nil {
		v := *s.EnableDefaultSubsources
		c.EnableDefaultSubsources = &v
	}
	return c
}

// Wire renders the source. A bare URL is emitted as a string.
func (s Source) Wire(url string) (any, error) {
	tr := s.Transform
	if tr == nil && len(s.Resolution) > 0 {
		var err error
		if tr, err = coords.NewTransform(s.Resolution); err != nil {
			return nil, fmt.Errorf("source %s: %w", s.URL, err)
		}
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("source %s: %w", s.URL, err)
	}
	if tr == nil && s.Subsources == nil && s.EnableDefaultSubsources == nil {
		return url, nil
	}
	out := map[string]any{"url": url}
	if tr != nil {
		out["transform"] = tr.Wire()
	}
	if s.Subsources != nil {
		sub := make(map[string]any, len(s.Subsources))
		for k, v := range s.Subsources {
			sub[k] = v
		}
		out["subsources"] = sub
	}
	if s.EnableDefaultSubsources != nil {
		out["enableDefaultSubsources"] = *s.EnableDefaultSubsources
	}
	return out, nil
}

func wireSources(srcs []Source, env WireEnv, image bool) (any, error) {
	out := make([]any, 0, len(srcs))
	for _, s := range srcs {
		w, err := s.Wire(env.rewrite(s.URL, image))
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

func cloneSources(srcs []Source) []Source {
	if srcs == nil {
		return nil
	}
	out := make([]Source, len(srcs))
	for i, s := range srcs {
		out[i] = s.Clone()
	}
	return out
}

// sourcesFromTable reads one source per row from a "url" column with an
// optional "resolution" column.
func sourcesFromTable(t *table.Table) ([]Source, error) {
	if !t.HasColumn("url") {
		return nil, &mapper.MissingColumnError{Mapper: "source", Column: "url"}
	}
	var out []Source
	for i, row := range t.Rows() {
		url := table.String(row["url"])
		if url == "" {
			continue
		}
		src := Source{URL: url}
		if v, ok := row["resolution"]; ok && !table.IsNull(v) {
			res, _, ok := table.Vector(v)
			if !ok {
				return nil, &mapper.ValueError{Mapper: "source", Column: "resolution", Row: i, Err: fmt.Errorf("not a vector: %v", v)}
			}
			src.Resolution = res
		}
		out = append(out, src)
	}
	return out, nil
}
