package sourceinfo

import (
	"slices"

	"github.com/agentic-research/ngstate/internal/coords"
	"gonum.org/v1/gonum/stat"
)

// Probe pairs a source URL with its fetched info, in layer order.
type Probe struct {
	URL  string
	Info *Info
}

// SuggestResolution returns the resolution of the first image source, else
// the first segmentation source.
func SuggestResolution(probes []Probe) []float64 {
	for _, typ := range []string{"image", "segmentation"} {
		for _, p := range probes {
			if p.Info != nil && p.Info.Type == typ && len(p.Info.Resolution) > 0 {
				return slices.Clone(p.Info.Resolution)
			}
		}
	}
	return nil
}

// SuggestPosition returns the center of the first segmentation source's
// bounds, else the first image source's, rescaled to resolution.
func SuggestPosition(probes []Probe, resolution []float64) []float64 {
	for _, typ := range []string{"segmentation", "image"} {
		for _, p := range probes {
			if p.Info == nil || p.Info.Type != typ {
				continue
			}
			if pos := meanPosition(p.Info, resolution); pos != nil {
				return pos
			}
		}
	}
	return nil
}

func meanPosition(info *Info, resolution []float64) []float64 {
	lo, hi := info.Bounds[0], info.Bounds[1]
	if len(lo) == 0 || len(lo) != len(hi) {
		return nil
	}
	pos := make([]float64, len(lo))
	for i := range pos {
		pos[i] = stat.Mean([]float64{lo[i], hi[i]}, nil)
	}
	if len(info.Resolution) == 0 || len(resolution) == 0 {
		return pos
	}
	f, err := coords.ScaleFactor(info.Resolution, resolution)
	if err != nil {
		return pos
	}
	scaled, err := coords.Scale(pos, f)
	if err != nil {
		return pos
	}
	return scaled
}
