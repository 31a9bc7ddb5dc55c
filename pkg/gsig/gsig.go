// Package gsig extracts graph-signal time series from volumes registered
// to a reference voxel space. Each graph node is associated with a flat
// voxel index into the reference grid; extraction reads the volume at
// those indices for a chosen subset of frames.
package gsig

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/nifti"
	"niiutil/pkg/resample"
	"niiutil/pkg/volume"
)

// affineTol is the per-element tolerance when matching a volume's affine
// against the reference space.
const affineTol = 1e-6

// RefSpace describes the voxel grid the graph was defined on.
type RefSpace struct {
	// Dim is the reference grid extents.
	Dim [3]int

	// Mat is the reference voxel-to-millimeter affine.
	Mat *mat.Dense
}

// RegistrationError reports a volume whose grid or affine does not match
// the reference space.
type RegistrationError struct {
	Path   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("gsig: %s is not registered to the reference space: %s", e.Path, e.Reason)
}

// ExtractOptions controls extraction.
type ExtractOptions struct {
	// Frames selects a subset of frame indices; nil means every frame.
	Frames []int

	// Ref, when set, requires the volume to match the reference space.
	Ref *RefSpace

	// Reslice, with Ref set, resamples a mismatched volume into the
	// reference grid instead of failing. Trilinear interpolation is used.
	Reslice bool
}

// Extract reads the volume at path and returns one row per requested flat
// voxel index and one column per selected frame. Stored values are
// calibrated with the volume's intensity scaling when a non-zero slope is
// present.
func Extract(path string, indices []int, opts ExtractOptions) (*mat.Dense, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("gsig: no voxel indices requested")
	}

	v, err := nifti.ReadVolume(path)
	if err != nil {
		return nil, err
	}

	if opts.Ref != nil {
		v, err = conform(path, v, opts)
		if err != nil {
			return nil, err
		}
	}

	frames := opts.Frames
	if frames == nil {
		frames = make([]int, v.Frames)
		for t := range frames {
			frames[t] = t
		}
	}
	for _, t := range frames {
		if t < 0 || t >= v.Frames {
			return nil, fmt.Errorf("gsig: frame %d out of range [0, %d)", t, v.Frames)
		}
	}

	n := v.NumVoxels()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("gsig: voxel index %d out of range [0, %d)", idx, n)
		}
	}

	slope := float64(v.PInfo[0])
	inter := float64(v.PInfo[1])
	calibrate := slope != 0 && !(slope == 1 && inter == 0)

	sig := mat.NewDense(len(indices), len(frames), nil)
	for c, t := range frames {
		frame := v.Frame(t)
		for r, idx := range indices {
			val := float64(frame[idx])
			if calibrate {
				val = val*slope + inter
			}
			sig.Set(r, c, val)
		}
	}

	log.WithFields(log.Fields{
		"path":    path,
		"indices": len(indices),
		"frames":  len(frames),
	}).Debug("extracted graph signal")
	return sig, nil
}

// conform verifies the volume against the reference space, reslicing it
// into the reference grid first when requested and needed.
func conform(path string, v *volume.Volume, opts ExtractOptions) (*volume.Volume, error) {
	ref := opts.Ref
	if v.Dim == ref.Dim && volume.EqualWithin(v.Mat, ref.Mat, affineTol) {
		return v, nil
	}
	if !opts.Reslice {
		return nil, &RegistrationError{
			Path: path,
			Reason: fmt.Sprintf("grid %v vs reference %v, or affines differ beyond %g",
				v.Dim, ref.Dim, affineTol),
		}
	}
	if !volume.IsDiagonal(v.Mat) || !volume.IsDiagonal(ref.Mat) {
		return nil, &RegistrationError{Path: path, Reason: "non-diagonal affine, cannot reslice"}
	}

	out, err := volume.New(ref.Dim, v.Frames, ref.Mat)
	if err != nil {
		return nil, err
	}
	out.DT = v.DT
	out.PInfo = v.PInfo
	fillOpts := resample.DefaultOptions()
	if err := resample.Fill(v, out, fillOpts); err != nil {
		return nil, err
	}
	log.WithField("path", path).Debug("resliced volume into reference space")
	return out, nil
}
