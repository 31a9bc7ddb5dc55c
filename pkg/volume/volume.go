// Package volume defines the in-memory representation of a voxel grid
// together with its affine voxel-to-millimeter transform, plus the affine
// helpers the resampler is built on.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Volume represents a regular 3D (optionally 4D, frame-indexed) grid of
// scalar intensities registered to physical space by an affine transform.
type Volume struct {
	// Dim holds the voxel grid extents along the three spatial axes.
	Dim [3]int

	// Frames is the number of time points stored in Data.
	// A plain 3D volume has Frames == 1.
	Frames int

	// Mat is the 4x4 affine mapping homogeneous voxel-index coordinates
	// (i, j, k, 1) to millimeter-space coordinates.
	Mat *mat.Dense

	// DT is the on-disk datatype code of the voxels. Resampling carries
	// it through unchanged.
	DT int16

	// PInfo is the intensity scaling pair (slope, intercept) applied when
	// mapping stored values to calibrated intensities. Preserved verbatim
	// across resampling.
	PInfo [2]float32

	// Data is the voxel data as a flat array in x-fastest order, one
	// frame after another. len(Data) == Dim[0]*Dim[1]*Dim[2]*Frames.
	Data []float32
}

// New allocates a zero-filled volume with the given grid extents, frame
// count and affine. The datatype and scaling fields are left for the caller.
func New(dim [3]int, frames int, affine *mat.Dense) (*Volume, error) {
	for a := 0; a < 3; a++ {
		if dim[a] < 1 {
			return nil, fmt.Errorf("volume: dimension %d is %d, must be >= 1", a, dim[a])
		}
	}
	if frames < 1 {
		return nil, fmt.Errorf("volume: frame count %d, must be >= 1", frames)
	}
	if r, c := affine.Dims(); r != 4 || c != 4 {
		return nil, fmt.Errorf("volume: affine is %dx%d, must be 4x4", r, c)
	}
	return &Volume{
		Dim:    dim,
		Frames: frames,
		Mat:    mat.DenseCopyOf(affine),
		Data:   make([]float32, dim[0]*dim[1]*dim[2]*frames),
	}, nil
}

// NumVoxels returns the number of voxels in a single frame.
func (v *Volume) NumVoxels() int {
	return v.Dim[0] * v.Dim[1] * v.Dim[2]
}

// Index converts voxel coordinates and a frame number to the flat offset
// into Data. No bounds checking is performed.
func (v *Volume) Index(i, j, k, t int) int {
	return ((t*v.Dim[2]+k)*v.Dim[1]+j)*v.Dim[0] + i
}

// At returns the stored value at voxel (i, j, k) of frame t.
func (v *Volume) At(i, j, k, t int) float32 {
	return v.Data[v.Index(i, j, k, t)]
}

// SetAt stores a value at voxel (i, j, k) of frame t.
func (v *Volume) SetAt(i, j, k, t int, val float32) {
	v.Data[v.Index(i, j, k, t)] = val
}

// Frame returns the sub-slice of Data holding frame t.
func (v *Volume) Frame(t int) []float32 {
	n := v.NumVoxels()
	return v.Data[t*n : (t+1)*n]
}
