package color

import imgcolor "image/color"

// Palette hands out stable colors for category labels.
type Palette struct {
	colors []imgcolor.RGBA
	index  map[string]int
}

// NewPalette returns a palette over the 20-color categorical scheme.
func NewPalette() *Palette {
	return &Palette{colors: categorical, index: map[string]int{}}
}

// For returns the color assigned to label, assigning the next free one on
// first use. Colors wrap after 20 labels.
func (p *Palette) For(label string) string {
	i, ok := p.index[label]
	if !ok {
		i = len(p.index)
		p.index[label] = i
	}
	return Hex(p.colors[i%len(p.colors)])
}

var categorical = []imgcolor.RGBA{
	{31, 119, 180, 255},
	{255, 127, 14, 255},
	{44, 160, 44, 255},
	{214, 39, 40, 255},
	{148, 103, 189, 255},
	{140, 86, 75, 255},
	{227, 119, 194, 255},
	{127, 127, 127, 255},
	{188, 189, 34, 255},
	{23, 190, 207, 255},
	{174, 199, 232, 255},
	{255, 187, 120, 255},
	{152, 223, 138, 255},
	{255, 152, 150, 255},
	{197, 176, 213, 255},
	{196, 156, 148, 255},
	{247, 182, 210, 255},
	{199, 199, 199, 255},
	{219, 219, 141, 255},
	{158, 218, 229, 255},
}
