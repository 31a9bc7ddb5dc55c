// Package resample converts NIfTI volumes between voxel resolutions by
// composing the input and output affines into a single voxel-to-voxel map
// and sampling the input grid at the mapped locations.
//
// Two execution strategies are provided. Full3D composes coordinates for
// whole output planes (or the whole volume) and supports both up- and
// downsampling. Slice2D builds a per-slice transform and samples each
// output slice through the 2D plane primitive; it supports downsampling
// only. Both strategies produce numerically equivalent output.
package resample

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/interp"
	"niiutil/pkg/nifti"
	"niiutil/pkg/volume"
)

// Strategy selects how output voxels are filled.
type Strategy int

const (
	// Full3D maps whole output planes (or the full grid) through the
	// composed transform and samples in 3D. Supports up- and downsampling.
	Full3D Strategy = iota

	// Slice2D builds a 4x4 transform per output slice and samples each
	// slice through the plane primitive. Downsampling only.
	Slice2D
)

func (s Strategy) String() string {
	switch s {
	case Full3D:
		return "full3D"
	case Slice2D:
		return "slice2D"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Resolution is the requested target voxel size in millimeters, one value
// per axis.
type Resolution [3]float64

// NewResolution builds a Resolution from one value (isotropic, broadcast
// to all three axes) or three values (anisotropic). All values must be
// positive.
func NewResolution(vals ...float64) (Resolution, error) {
	var r Resolution
	switch len(vals) {
	case 1:
		r = Resolution{vals[0], vals[0], vals[0]}
	case 3:
		copy(r[:], vals)
	default:
		return r, fmt.Errorf("resample: resolution needs 1 or 3 values, got %d", len(vals))
	}
	for a := 0; a < 3; a++ {
		if !(r[a] > 0) || math.IsInf(r[a], 0) {
			return r, fmt.Errorf("resample: resolution must be positive, axis %d is %v", a, r[a])
		}
	}
	return r, nil
}

// IsIsotropic reports whether all three axes share the same target size.
func (r Resolution) IsIsotropic() bool {
	return r[0] == r[1] && r[1] == r[2]
}

// Options controls a resampling run. The zero value is not useful; start
// from DefaultOptions.
type Options struct {
	// Order is the interpolation order: 0 nearest, 1 trilinear, 2 and
	// above tricubic.
	Order int

	// Strategy selects the execution strategy.
	Strategy Strategy

	// MemorySafe, for the Full3D strategy, produces and writes one
	// output plane at a time instead of materializing the coordinate
	// grid and output volume up front. It does not change the numeric
	// result. Ignored by Slice2D, which is plane-bounded by
	// construction.
	MemorySafe bool

	// OutputPath overrides the derived output filename. Its extension
	// dictates whether the output is compressed.
	OutputPath string
}

// DefaultOptions returns trilinear, memory-safe Full3D resampling with a
// derived output name.
func DefaultOptions() Options {
	return Options{Order: 1, Strategy: Full3D, MemorySafe: true}
}

// Resample reads the volume at inputPath, resamples it to the target
// resolution and writes the result, returning the output path. Gzipped
// inputs are first decompressed to a working copy next to the input; the
// copy is removed on every exit path this call created it on.
func Resample(inputPath string, res Resolution, opts Options) (string, error) {
	if err := nifti.CheckPath(inputPath); err != nil {
		return "", err
	}
	if opts.OutputPath != "" {
		if err := nifti.CheckPath(opts.OutputPath); err != nil {
			return "", err
		}
	}

	workPath, cleanup, err := stageInput(inputPath)
	if err != nil {
		return "", err
	}
	defer cleanup()

	in, err := nifti.ReadVolume(workPath)
	if err != nil {
		return "", err
	}

	out, err := gridMeta(in, res, opts.Strategy)
	if err != nil {
		var affErr *UnsupportedAffineError
		if errors.As(err, &affErr) {
			affErr.Path = inputPath
		}
		return "", err
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = DeriveOutputPath(inputPath, res)
	}

	// Slice2D and memory-safe Full3D are plane-bounded: planes stream
	// straight to the output file. The buffered variant materializes the
	// whole volume first.
	if opts.Strategy == Slice2D || opts.MemorySafe {
		if err := streamFill(in, out, opts, outputPath); err != nil {
			return "", err
		}
	} else {
		out.Data = make([]float32, out.NumVoxels()*out.Frames)
		if err := Fill(in, out, opts); err != nil {
			return "", err
		}
		if err := nifti.WriteVolume(outputPath, out); err != nil {
			return "", err
		}
	}

	log.WithFields(log.Fields{
		"input":    inputPath,
		"output":   outputPath,
		"res":      res,
		"strategy": opts.Strategy.String(),
		"order":    opts.Order,
	}).Debug("resampled volume")
	return outputPath, nil
}

// Grid validates the input against the target resolution and strategy and
// allocates the empty output volume: dimensions from the per-axis scale
// factors, affine with the diagonal magnitudes replaced by the target
// resolution, translation column unchanged, datatype and intensity
// scaling copied verbatim.
func Grid(in *volume.Volume, res Resolution, strategy Strategy) (*volume.Volume, error) {
	out, err := gridMeta(in, res, strategy)
	if err != nil {
		return nil, err
	}
	out.Data = make([]float32, out.NumVoxels()*out.Frames)
	return out, nil
}

// gridMeta computes the output geometry and metadata without allocating
// voxel data, so the streaming path never holds a full output buffer.
func gridMeta(in *volume.Volume, res Resolution, strategy Strategy) (*volume.Volume, error) {
	if !volume.IsDiagonal(in.Mat) {
		return nil, &UnsupportedAffineError{}
	}

	spacing := volume.Spacing(in.Mat)
	var scale [3]float64
	for a := 0; a < 3; a++ {
		scale[a] = res[a] / spacing[a]
		if scale[a] < 1 && strategy == Slice2D {
			return nil, &UnsupportedOperationError{Strategy: strategy, Axis: a, Scale: scale[a]}
		}
	}

	var outDim [3]int
	for a := 0; a < 3; a++ {
		outDim[a] = int(math.Round(float64(in.Dim[a]) / scale[a]))
		if outDim[a] < 1 {
			outDim[a] = 1
		}
	}

	sign := volume.SignPattern(in.Mat)
	outMat := mat.DenseCopyOf(in.Mat)
	for a := 0; a < 3; a++ {
		outMat.Set(a, a, sign[a]*res[a])
	}

	return &volume.Volume{
		Dim:    outDim,
		Frames: in.Frames,
		Mat:    outMat,
		DT:     in.DT,
		PInfo:  in.PInfo,
	}, nil
}

// Fill populates out by sampling in through the composed voxel-to-voxel
// transform, using the strategy and interpolation order from opts.
func Fill(in, out *volume.Volume, opts Options) error {
	a, err := volume.Compose(in.Mat, out.Mat)
	if err != nil {
		return err
	}
	sampler, err := interp.New(in, opts.Order)
	if err != nil {
		return err
	}

	switch opts.Strategy {
	case Full3D:
		if opts.MemorySafe {
			fillPlanewise(sampler, a, out)
		} else {
			fillBuffered(sampler, a, out)
		}
		return nil
	case Slice2D:
		fillSlicewise(sampler, a, out)
		return nil
	}
	return fmt.Errorf("resample: unknown strategy %d", int(opts.Strategy))
}

// stageInput returns a readable uncompressed path for the input. For
// gzipped inputs it decompresses into a uniquely named sibling file and
// returns a cleanup that removes it; for plain inputs the cleanup is a
// no-op.
func stageInput(path string) (string, func(), error) {
	if !nifti.IsGzipped(path) {
		return path, func() {}, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return "", nil, fmt.Errorf("resample: decompressing %s: %w", path, err)
	}
	defer gz.Close()

	dir := filepath.Dir(path)
	work := filepath.Join(dir, fmt.Sprintf("%s_%s.nii", filepath.Base(nifti.BaseName(path)), uuid.NewString()[:8]))
	dst, err := os.Create(work)
	if err != nil {
		return "", nil, err
	}
	if _, err := dst.ReadFrom(gz); err != nil {
		dst.Close()
		os.Remove(work)
		return "", nil, fmt.Errorf("resample: decompressing %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(work)
		return "", nil, err
	}
	return work, func() { os.Remove(work) }, nil
}
