package interp

import (
	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/volume"
)

// SamplePlane evaluates one output plane. For every output voxel (i, j, k)
// of the plane it maps the homogeneous coordinate through the voxel-to-voxel
// transform a and samples frame t of the source at the result. dst must
// hold nx*ny values and is written in x-fastest order.
//
// Passing the full composed transform with the true plane index k realizes
// plane-wise 3D sampling; passing a per-slice transform with k fixed at 0
// realizes the 2D slice primitive.
func SamplePlane(s Sampler, a *mat.Dense, k, nx, ny, t int, dst []float32) {
	for j := 0; j < ny; j++ {
		row := dst[j*nx : (j+1)*nx]
		for i := 0; i < nx; i++ {
			x, y, z := volume.Apply(a, float64(i), float64(j), float64(k))
			row[i] = float32(s.At(x, y, z, t))
		}
	}
}

// SliceTransform builds the 4x4 transform for output slice k: it is the
// composed voxel-to-voxel map with the slice index folded into the
// translation column, so that plane coordinates (i, j, 0) address slice k.
func SliceTransform(a *mat.Dense, k int) *mat.Dense {
	m := mat.DenseCopyOf(a)
	fk := float64(k)
	for r := 0; r < 3; r++ {
		m.Set(r, 3, a.At(r, 3)+a.At(r, 2)*fk)
	}
	return m
}
