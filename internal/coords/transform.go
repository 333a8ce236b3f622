package coords

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transform is an affine transform attached to a data source. A nil Matrix
// is the identity.
type Transform struct {
	OutputDimensions Space
	InputDimensions  *Space
	Matrix           [][]float64
}

// NewTransform returns the transform neuroglancer uses to declare a source's
// native resolution: identity matrix, output dimensions at resolution.
func NewTransform(resolution []float64) (*Transform, error) {
	if len(resolution) == 0 {
		return nil, nil
	}
	out, err := New(resolution, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Transform{OutputDimensions: out}, nil
}

// Validate checks the matrix is rank x (rank+1).
func (t *Transform) Validate() error {
	if t == nil || t.Matrix == nil {
		return nil
	}
	rank := t.OutputDimensions.Dim()
	if len(t.Matrix) != rank {
		return fmt.Errorf("%w: transform has %d rows for %d output dimensions", ErrShapeMismatch, len(t.Matrix), rank)
	}
	for i, row := range t.Matrix {
		if len(row) != rank+1 {
			return fmt.Errorf("%w: transform row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), rank+1)
		}
	}
	return nil
}

// Wire renders the transform as a JSON-ready map.
func (t *Transform) Wire() map[string]any {
	if t == nil {
		return nil
	}
	out := map[string]any{"outputDimensions": t.OutputDimensions.Dimensions()}
	if t.InputDimensions != nil && t.InputDimensions.IsSet() {
		out["inputDimensions"] = t.InputDimensions.Dimensions()
	}
	if t.Matrix != nil {
		m := make([]any, len(t.Matrix))
		for i, row := range t.Matrix {
			r := make([]any, len(row))
			for j, v := range row {
				r[j] = v
			}
			m[i] = r
		}
		out["matrix"] = m
	}
	return out
}

// Clone returns a deep copy.
func (t *Transform) Clone() *Transform {
	if t == nil {
		return nil
	}
	c := &Transform{OutputDimensions: t.OutputDimensions.Clone()}
	if t.InputDimensions != nil {
		in := t.InputDimensions.Clone()
		c.InputDimensions = &in
	}
	if t.Matrix != nil {
		c.Matrix = make([][]float64, len(t.Matrix))
		for i, row := range t.Matrix {
			c.Matrix[i] = append([]float64(nil), row...)
		}
	}
	return c
}

// Apply maps a point through the affine transform.
func (t *Transform) Apply(point []float64) ([]float64, error) {
	if t == nil || t.Matrix == nil {
		return append([]float64(nil), point...), nil
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rank := len(t.Matrix)
	if len(point) != rank {
		return nil, fmt.Errorf("%w: point has %d coordinates for rank %d transform", ErrShapeMismatch, len(point), rank)
	}
	m := mat.NewDense(rank, rank+1, nil)
	for i, row := range t.Matrix {
		m.SetRow(i, row)
	}
	h := mat.NewVecDense(rank+1, append(append([]float64(nil), point...), 1))
	var out mat.VecDense
	out.MulVec(m, h)
	return out.RawVector().Data, nil
}
