package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"

	"github.com/agentic-research/ngstate/internal/coords"
	"github.com/agentic-research/ngstate/internal/datamap"
	"github.com/agentic-research/ngstate/internal/layer"
	"github.com/agentic-research/ngstate/internal/sourceinfo"
)

// ToDict renders the wire document. Unresolved DataMaps fail with
// datamap.ErrUnmapped. Missing dimensions and position are inferred from
// sources when enabled; inference failures only log.
func (s *State) ToDict(ctx context.Context) (map[string]any, error) {
	if err := datamap.Check(s.targets()); err != nil {
		return nil, err
	}
	if !s.Layout.Valid() {
		return nil, fmt.Errorf("unknown layout %q", s.Layout)
	}
	site, err := s.site()
	if err != nil {
		return nil, err
	}

	space := s.Space
	position := slices.Clone(s.Position)
	selected := s.Selected

	var probes []sourceinfo.Probe
	probed := false
	probe := func() []sourceinfo.Probe {
		if !probed {
			probes = s.probe(ctx)
			probed = true
		}
		return probes
	}

	if !space.IsSet() && s.canInfer() {
		if res := sourceinfo.SuggestResolution(probe()); res != nil {
			if space, err = coords.New(res, nil, nil); err != nil {
				log.Printf("warning: inferred resolution %v unusable: %v", res, err)
				space = coords.Space{}
			}
		} else {
			log.Printf("warning: could not infer a coordinate space from layer sources")
		}
	}

	if position == nil {
		for _, l := range s.layers {
			seg, ok := l.(*layer.SegmentationLayer)
			if !ok {
				continue
			}
			center, focused, err := seg.Focus(space.Resolution)
			if err != nil {
				return nil, fmt.Errorf("layer %q: %w", seg.Name(), err)
			}
			if focused {
				position = center
				if selected == nil {
					selected = &SelectedLayer{Name: seg.Name(), Visible: true}
				}
				break
			}
		}
	}
	if position == nil {
		for _, l := range s.layers {
			if al, ok := l.(*layer.AnnotationLayer); ok {
				p, err := al.Position(space.Resolution)
				if err != nil {
					return nil, fmt.Errorf("layer %q: %w", al.Name(), err)
				}
				if p != nil {
					position = p
					break
				}
			}
		}
	}
	if position == nil && s.canInfer() {
		position = sourceinfo.SuggestPosition(probe(), space.Resolution)
	}

	env := layer.WireEnv{Space: space, RewriteSource: site.Rewrite}
	layers := make([]any, 0, len(s.layers))
	for _, l := range s.layers {
		w, err := l.Wire(env)
		if err != nil {
			return nil, err
		}
		layers = append(layers, w)
	}

	doc := map[string]any{
		"dimensions":        space.Dimensions(),
		"crossSectionScale": s.ScaleImagery,
		"projectionScale":   s.Scale3D,
		"showSlices":        s.ShowSlices,
		"layout":            string(s.Layout),
		"layers":            layers,
	}
	if position != nil {
		doc["position"] = position
	}
	if selected != nil {
		doc["selectedLayer"] = map[string]any{"layer": selected.Name, "visible": selected.Visible}
	}
	return normalize(doc)
}

// ToJSON renders the wire document as JSON.
func (s *State) ToJSON(ctx context.Context) ([]byte, error) {
	doc, err := s.ToDict(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (s *State) canInfer() bool {
	return s.InferCoordinates && s.Inferrer != nil
}

func (s *State) site() (Site, error) {
	sites := s.Sites
	if sites == nil {
		sites = DefaultSites()
	}
	site, err := sites.Lookup(s.Site)
	if err != nil {
		return Site{}, err
	}
	if s.BaseURL != "" {
		site.URL = s.BaseURL
	}
	return site, nil
}

// probe fetches info for the first source of each image and segmentation
// layer, in layer order.
func (s *State) probe(ctx context.Context) []sourceinfo.Probe {
	var out []sourceinfo.Probe
	for _, l := range s.layers {
		if l.Type() == layer.TypeAnnotation {
			continue
		}
		srcs := l.Sources()
		if len(srcs) == 0 {
			continue
		}
		url := srcs[0].URL
		info, err := s.Inferrer.Info(ctx, url)
		if err != nil {
			log.Printf("warning: layer %q: cannot read source info for %s: %v", l.Name(), url, err)
			continue
		}
		out = append(out, sourceinfo.Probe{URL: url, Info: info})
	}
	return out
}

// normalize round-trips doc through JSON so the returned value holds only
// the types a JSON decoder produces.
func normalize(doc map[string]any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return out, nil
}
