// Package linter reports likely mistakes in a state spec that still pass
// validation.
package linter

import (
	"fmt"
	"slices"

	"github.com/agentic-research/ngstate/api"
)

type Diagnostic struct {
	Layer   string
	Message string
}

func (d Diagnostic) String() string {
	if d.Layer == "" {
		return d.Message
	}
	return fmt.Sprintf("layer %q: %s", d.Layer, d.Message)
}

// Lint checks the spec. dataKeys, when not nil, lists the tables that will
// be supplied; mappers reading other keys and unused tables are reported.
func Lint(spec *api.StateSpec, dataKeys []string) []Diagnostic {
	var diags []Diagnostic
	report := func(layer, format string, args ...any) {
		diags = append(diags, Diagnostic{Layer: layer, Message: fmt.Sprintf(format, args...)})
	}

	types := make(map[string]string, len(spec.Layers))
	for _, l := range spec.Layers {
		types[l.Name] = l.Type
	}
	used := map[string]bool{}
	focused := 0

	for _, l := range spec.Layers {
		if l.SourceData != "" {
			used[l.SourceData] = true
		}
		switch l.Type {
		case api.LayerImage, api.LayerSegmentation:
			if len(l.Sources) == 0 && l.SourceData == "" {
				report(l.Name, "%s layer has no sources", l.Type)
			}
		case api.LayerAnnotation:
			if l.LinkedSegmentation != "" {
				switch t, ok := types[l.LinkedSegmentation]; {
				case !ok:
					report(l.Name, "linked segmentation %q does not exist", l.LinkedSegmentation)
				case t != api.LayerSegmentation:
					report(l.Name, "linked segmentation %q is a %s layer", l.LinkedSegmentation, t)
				}
			}
			if l.FilterBySegmentation && l.LinkedSegmentation == "" {
				report(l.Name, "filter_by_segmentation has no effect without linked_segmentation")
			}
			if len(l.Tags) > 0 && !l.AutoTags && !tagged(l.Mappers) {
				report(l.Name, "tags are declared but no mapper reads a tag column")
			}
		}
		for i, m := range l.Mappers {
			used[m.Data] = true
			if dataKeys != nil && !slices.Contains(dataKeys, m.Data) {
				report(l.Name, "mapper %d reads data %q, which is not supplied", i, m.Data)
			}
			if m.Kind == api.MapperSplitPoint && m.Focus {
				focused++
			}
			if m.SetPosition && len(spec.Position) > 0 {
				report(l.Name, "mapper %d set_position is overridden by the explicit position", i)
			}
		}
		if l.Name == spec.SelectedLayer && l.Archived {
			report(l.Name, "selected layer is archived")
		}
	}

	if focused > 1 {
		report("", "%d split point mappers request focus; the last one wins", focused)
	}
	for _, k := range dataKeys {
		if !used[k] {
			report("", "data %q is not used by any layer", k)
		}
	}
	return diags
}

func tagged(mappers []api.MapperSpec) bool {
	for _, m := range mappers {
		if m.Tag != "" || len(m.TagBools) > 0 {
			return true
		}
	}
	return false
}
