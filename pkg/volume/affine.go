package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// diagTol is the tolerance under which an off-diagonal spatial term of an
// affine is treated as zero.
const diagTol = 1e-6

// Spacing extracts the per-axis voxel spacing from an affine as the
// absolute value of its diagonal entries. Valid only for affines that pass
// IsDiagonal.
func Spacing(affine *mat.Dense) [3]float64 {
	var s [3]float64
	for a := 0; a < 3; a++ {
		s[a] = math.Abs(affine.At(a, a))
	}
	return s
}

// SignPattern returns the sign (+1 or -1) of each diagonal entry of the
// affine. A zero diagonal entry reports +1; such affines are rejected by
// IsDiagonal anyway.
func SignPattern(affine *mat.Dense) [3]float64 {
	var sg [3]float64
	for a := 0; a < 3; a++ {
		if affine.At(a, a) < 0 {
			sg[a] = -1
		} else {
			sg[a] = 1
		}
	}
	return sg
}

// IsDiagonal reports whether the spatial 3x3 block of the affine is
// diagonal within tolerance, i.e. the transform encodes independent
// per-axis scalings with no shear or rotation. The translation column and
// the homogeneous row are not inspected.
func IsDiagonal(affine *mat.Dense) bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if r == c {
				continue
			}
			if math.Abs(affine.At(r, c)) > diagTol {
				return false
			}
		}
		if math.Abs(affine.At(r, r)) <= diagTol {
			return false
		}
	}
	return true
}

// Compose computes the voxel-to-voxel map A = inv(matIn) * matOut, the
// single transform taking output voxel indices to input voxel indices. It
// is computed once per resampling run and reused for every sampled point.
func Compose(matIn, matOut *mat.Dense) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(matIn); err != nil {
		return nil, fmt.Errorf("affine not invertible: %w", err)
	}
	a := mat.NewDense(4, 4, nil)
	a.Mul(&inv, matOut)
	return a, nil
}

// Apply maps a homogeneous voxel coordinate (i, j, k, 1) through a 4x4
// affine and returns the transformed x, y, z components.
func Apply(affine *mat.Dense, i, j, k float64) (float64, float64, float64) {
	x := affine.At(0, 0)*i + affine.At(0, 1)*j + affine.At(0, 2)*k + affine.At(0, 3)
	y := affine.At(1, 0)*i + affine.At(1, 1)*j + affine.At(1, 2)*k + affine.At(1, 3)
	z := affine.At(2, 0)*i + affine.At(2, 1)*j + affine.At(2, 2)*k + affine.At(2, 3)
	return x, y, z
}

// EqualWithin reports whether two affines agree element-wise within tol.
func EqualWithin(a, b *mat.Dense, tol float64) bool {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if math.Abs(a.At(r, c)-b.At(r, c)) > tol {
				return false
			}
		}
	}
	return true
}
