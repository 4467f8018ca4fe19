package n5v

import (
	"errors"
	"fmt"
	"math"
)

// ErrSingularTransform is returned when an affine transform has no inverse.
var ErrSingularTransform = errors.New("affine transform is not invertible")

// Affine3D is a 3x4 row-major matrix mapping voxel coordinates to physical
// coordinates.  The first three columns hold the linear part, the last column the
// translation.
type Affine3D [12]float64

// IdentityAffine returns the identity transform.
func IdentityAffine() Affine3D {
	return Affine3D{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
}

// ScaleTranslation returns a transform that scales then translates along each axis.
func ScaleTranslation(scale, translate [3]float64) Affine3D {
	return Affine3D{
		scale[0], 0, 0, translate[0],
		0, scale[1], 0, translate[1],
		0, 0, scale[2], translate[2],
	}
}

// AffineFromRowPacked builds a transform from row-packed values.  Twelve values
// describe a 3D transform; six values describe a 2D transform that is lifted into 3D
// by appending an identity third axis.
func AffineFromRowPacked(values []float64) (Affine3D, error) {
	switch len(values) {
	case 12:
		var a Affine3D
		copy(a[:], values)
		return a, nil
	case 6:
		return Lift2D([6]float64{values[0], values[1], values[2], values[3], values[4], values[5]}), nil
	default:
		return Affine3D{}, fmt.Errorf("affine transform needs 6 or 12 values, got %d", len(values))
	}
}

// Lift2D returns the 3D version of a row-packed 2x3 transform where the third axis
// passes through unchanged.
func Lift2D(m [6]float64) Affine3D {
	return Affine3D{
		m[0], m[1], 0, m[2],
		m[3], m[4], 0, m[5],
		0, 0, 1, 0,
	}
}

// Get returns the element at the given row (0-2) and column (0-3).
func (a Affine3D) Get(row, col int) float64 {
	return a[row*4+col]
}

// Set modifies the element at the given row and column.
func (a *Affine3D) Set(row, col int, value float64) {
	a[row*4+col] = value
}

// Concatenate returns a * b, i.e., b is applied first.
func (a Affine3D) Concatenate(b Affine3D) Affine3D {
	var out Affine3D
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a.Get(r, k) * b.Get(k, c)
			}
			if c == 3 {
				sum += a.Get(r, 3)
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// PreConcatenate returns b * a, i.e., a is applied first.
func (a Affine3D) PreConcatenate(b Affine3D) Affine3D {
	return b.Concatenate(a)
}

// Apply maps a point.
func (a Affine3D) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = a.Get(r, 0)*p[0] + a.Get(r, 1)*p[1] + a.Get(r, 2)*p[2] + a.Get(r, 3)
	}
	return out
}

// Determinant of the linear part.
func (a Affine3D) Determinant() float64 {
	return a[0]*(a[5]*a[10]-a[6]*a[9]) -
		a[1]*(a[4]*a[10]-a[6]*a[8]) +
		a[2]*(a[4]*a[9]-a[5]*a[8])
}

// Inverse returns the inverse transform or ErrSingularTransform.
func (a Affine3D) Inverse() (Affine3D, error) {
	det := a.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine3D{}, ErrSingularTransform
	}
	var inv Affine3D
	inv[0] = (a[5]*a[10] - a[6]*a[9]) / det
	inv[1] = (a[2]*a[9] - a[1]*a[10]) / det
	inv[2] = (a[1]*a[6] - a[2]*a[5]) / det
	inv[4] = (a[6]*a[8] - a[4]*a[10]) / det
	inv[5] = (a[0]*a[10] - a[2]*a[8]) / det
	inv[6] = (a[2]*a[4] - a[0]*a[6]) / det
	inv[8] = (a[4]*a[9] - a[5]*a[8]) / det
	inv[9] = (a[1]*a[8] - a[0]*a[9]) / det
	inv[10] = (a[0]*a[5] - a[1]*a[4]) / det
	for r := 0; r < 3; r++ {
		inv.Set(r, 3, -(inv.Get(r, 0)*a[3] + inv.Get(r, 1)*a[7] + inv.Get(r, 2)*a[11]))
	}
	return inv, nil
}

// IsInvertible returns true if the linear part has a non-zero, finite determinant.
func (a Affine3D) IsInvertible() bool {
	_, err := a.Inverse()
	return err == nil
}

// Scales returns the diagonal of the linear part.
func (a Affine3D) Scales() [3]float64 {
	return [3]float64{a[0], a[5], a[10]}
}

// Translation returns the translation column.
func (a Affine3D) Translation() [3]float64 {
	return [3]float64{a[3], a[7], a[11]}
}

// ScaleMagnitude is the Euclidean norm of the diagonal scale components.  Scale
// levels of a pyramid are ordered by it.
func (a Affine3D) ScaleMagnitude() float64 {
	s := a.Scales()
	return math.Sqrt(s[0]*s[0] + s[1]*s[1] + s[2]*s[2])
}

// Equal returns true if both transforms are within tol elementwise.
func (a Affine3D) Equal(b Affine3D, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// RowPacked returns the twelve values of the transform.
func (a Affine3D) RowPacked() []float64 {
	out := make([]float64, 12)
	copy(out, a[:])
	return out
}

func (a Affine3D) String() string {
	return fmt.Sprintf("3d-affine: (%g, %g, %g, %g, %g, %g, %g, %g, %g, %g, %g, %g)",
		a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8], a[9], a[10], a[11])
}
