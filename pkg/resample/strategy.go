package resample

import (
	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/interp"
	"niiutil/pkg/nifti"
	"niiutil/pkg/volume"
)

// streamFill samples output planes and writes each to the file as soon as
// it is complete, reusing a single plane buffer. out carries geometry and
// metadata only; its Data stays nil. Used by the plane-bounded modes
// (Slice2D and memory-safe Full3D).
func streamFill(in, out *volume.Volume, opts Options, path string) error {
	a, err := volume.Compose(in.Mat, out.Mat)
	if err != nil {
		return err
	}
	sampler, err := interp.New(in, opts.Order)
	if err != nil {
		return err
	}
	sw, err := nifti.NewStreamWriter(path, out)
	if err != nil {
		return err
	}

	nx, ny, nz := out.Dim[0], out.Dim[1], out.Dim[2]
	plane := make([]float32, nx*ny)
	for t := 0; t < out.Frames; t++ {
		for k := 0; k < nz; k++ {
			if opts.Strategy == Slice2D {
				mk := interp.SliceTransform(a, k)
				interp.SamplePlane(sampler, mk, 0, nx, ny, t, plane)
			} else {
				interp.SamplePlane(sampler, a, k, nx, ny, t, plane)
			}
			if err := sw.WritePlane(plane); err != nil {
				sw.Close()
				return err
			}
		}
	}
	return sw.Close()
}

// fillPlanewise is the memory-safe Full3D path: output coordinates are
// computed on the fly, one plane at a time, and each plane is complete
// before the next begins. Peak extra memory is bounded by one plane.
func fillPlanewise(s interp.Sampler, a *mat.Dense, out *volume.Volume) {
	nx, ny, nz := out.Dim[0], out.Dim[1], out.Dim[2]
	planeLen := nx * ny
	for t := 0; t < out.Frames; t++ {
		frame := out.Frame(t)
		for k := 0; k < nz; k++ {
			interp.SamplePlane(s, a, k, nx, ny, t, frame[k*planeLen:(k+1)*planeLen])
		}
	}
}

// fillBuffered is the non-memory-safe Full3D path: the full voxel-to-voxel
// coordinate grid is materialized once, then every frame is sampled from
// it. Faster for repeated frames, at the cost of three float64 arrays the
// size of one frame.
func fillBuffered(s interp.Sampler, a *mat.Dense, out *volume.Volume) {
	nx, ny, nz := out.Dim[0], out.Dim[1], out.Dim[2]
	n := nx * ny * nz

	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	idx := 0
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				xs[idx], ys[idx], zs[idx] = volume.Apply(a, float64(i), float64(j), float64(k))
				idx++
			}
		}
	}

	for t := 0; t < out.Frames; t++ {
		frame := out.Frame(t)
		for v := 0; v < n; v++ {
			frame[v] = float32(s.At(xs[v], ys[v], zs[v], t))
		}
	}
}

// fillSlicewise is the Slice2D path: for each output slice a dedicated
// 4x4 transform is built by folding the slice index into the translation
// column, then the slice is sampled through the plane primitive with its
// third coordinate fixed at zero.
func fillSlicewise(s interp.Sampler, a *mat.Dense, out *volume.Volume) {
	nx, ny, nz := out.Dim[0], out.Dim[1], out.Dim[2]
	planeLen := nx * ny
	for t := 0; t < out.Frames; t++ {
		frame := out.Frame(t)
		for k := 0; k < nz; k++ {
			mk := interp.SliceTransform(a, k)
			interp.SamplePlane(s, mk, 0, nx, ny, t, frame[k*planeLen:(k+1)*planeLen])
		}
	}
}
