package gsig

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/nifti"
	"niiutil/pkg/volume"
)

// diagAffine builds a diagonal affine with the given spacings and translation
func diagAffine(sx, sy, sz, tx, ty, tz float64) *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	a.Set(0, 0, sx)
	a.Set(1, 1, sy)
	a.Set(2, 2, sz)
	a.Set(0, 3, tx)
	a.Set(1, 3, ty)
	a.Set(2, 3, tz)
	a.Set(3, 3, 1)
	return a
}

// writeTestVolume stores a volume whose value at flat index v of frame t
// is v + 1000*t, so extracted signals are predictable
func writeTestVolume(t *testing.T, path string, dim [3]int, frames int, affine *mat.Dense) {
	t.Helper()
	v, err := volume.New(dim, frames, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	v.DT = nifti.DTFloat32
	v.PInfo = [2]float32{1, 0}
	n := v.NumVoxels()
	for tt := 0; tt < frames; tt++ {
		frame := v.Frame(tt)
		for i := 0; i < n; i++ {
			frame[i] = float32(i + 1000*tt)
		}
	}
	if err := nifti.WriteVolume(path, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
}

// TestExtractAllFrames verifies row/column layout with every frame selected
func TestExtractAllFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	writeTestVolume(t, path, [3]int{4, 4, 4}, 3, diagAffine(1, 1, 1, 0, 0, 0))

	indices := []int{0, 5, 63}
	sig, err := Extract(path, indices, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	rows, cols := sig.Dims()
	if rows != 3 || cols != 3 {
		t.Fatalf("Expected 3x3 signal matrix, got %dx%d", rows, cols)
	}
	for r, idx := range indices {
		for c := 0; c < 3; c++ {
			want := float64(idx + 1000*c)
			if got := sig.At(r, c); got != want {
				t.Errorf("Signal[%d][%d]: expected %f, got %f", r, c, want, got)
			}
		}
	}
}

// TestExtractFrameSubset verifies frame selection and ordering
func TestExtractFrameSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	writeTestVolume(t, path, [3]int{4, 4, 4}, 4, diagAffine(1, 1, 1, 0, 0, 0))

	sig, err := Extract(path, []int{7}, ExtractOptions{Frames: []int{3, 1}})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if got := sig.At(0, 0); got != 7+3000 {
		t.Errorf("Expected frame 3 first, got %f", got)
	}
	if got := sig.At(0, 1); got != 7+1000 {
		t.Errorf("Expected frame 1 second, got %f", got)
	}

	if _, err := Extract(path, []int{7}, ExtractOptions{Frames: []int{4}}); err == nil {
		t.Error("Expected error for out-of-range frame")
	}
}

// TestExtractCalibration verifies that a non-trivial scl slope/intercept
// pair is applied to extracted values
func TestExtractCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	affine := diagAffine(1, 1, 1, 0, 0, 0)
	v, err := volume.New([3]int{2, 2, 2}, 1, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	v.DT = nifti.DTInt16
	v.PInfo = [2]float32{0.5, -1}
	for i := range v.Data {
		v.Data[i] = float32(i * 10)
	}
	if err := nifti.WriteVolume(path, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}

	sig, err := Extract(path, []int{3}, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got, want := sig.At(0, 0), 30*0.5-1.0; got != want {
		t.Errorf("Expected calibrated value %f, got %f", want, got)
	}
}

// TestExtractValidation verifies rejection of empty and out-of-range indices
func TestExtractValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	writeTestVolume(t, path, [3]int{4, 4, 4}, 1, diagAffine(1, 1, 1, 0, 0, 0))

	if _, err := Extract(path, nil, ExtractOptions{}); err == nil {
		t.Error("Expected error for empty index set")
	}
	if _, err := Extract(path, []int{64}, ExtractOptions{}); err == nil {
		t.Error("Expected error for out-of-range index")
	}
	if _, err := Extract(path, []int{-1}, ExtractOptions{}); err == nil {
		t.Error("Expected error for negative index")
	}
}

// TestExtractRegistrationCheck verifies the reference-space match and the
// typed mismatch error
func TestExtractRegistrationCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	affine := diagAffine(1, 1, 1, -2, -2, -2)
	writeTestVolume(t, path, [3]int{4, 4, 4}, 2, affine)

	ref := &RefSpace{Dim: [3]int{4, 4, 4}, Mat: affine}
	if _, err := Extract(path, []int{0}, ExtractOptions{Ref: ref}); err != nil {
		t.Errorf("Matching reference should be accepted, got %v", err)
	}

	shifted := diagAffine(1, 1, 1, -2.001, -2, -2)
	badRef := &RefSpace{Dim: [3]int{4, 4, 4}, Mat: shifted}
	_, err := Extract(path, []int{0}, ExtractOptions{Ref: badRef})
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("Expected RegistrationError, got %v", err)
	}

	wrongDim := &RefSpace{Dim: [3]int{5, 4, 4}, Mat: affine}
	if _, err := Extract(path, []int{0}, ExtractOptions{Ref: wrongDim}); err == nil {
		t.Error("Expected error for mismatched grid extents")
	}
}

// TestExtractWithReslice verifies that a mismatched volume is resampled
// into the reference space before extraction
func TestExtractWithReslice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.nii")
	affine := diagAffine(1, 1, 1, 0, 0, 0)

	// Field linear in x so trilinear reslicing is exact in the interior.
	dim := [3]int{10, 10, 10}
	v, err := volume.New(dim, 1, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	v.DT = nifti.DTFloat32
	v.PInfo = [2]float32{1, 0}
	for k := 0; k < dim[2]; k++ {
		for j := 0; j < dim[1]; j++ {
			for i := 0; i < dim[0]; i++ {
				v.SetAt(i, j, k, 0, float32(i))
			}
		}
	}
	if err := nifti.WriteVolume(path, v); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}

	ref := &RefSpace{Dim: [3]int{5, 5, 5}, Mat: diagAffine(2, 2, 2, 0, 0, 0)}

	// Without reslicing the mismatch is fatal.
	if _, err := Extract(path, []int{0}, ExtractOptions{Ref: ref}); err == nil {
		t.Fatal("Expected registration error without reslicing")
	}

	// Reference voxel (2,1,1) sits at input x=4, so the resliced value
	// should be 4.
	idx := (1*5+1)*5 + 2
	sig, err := Extract(path, []int{idx}, ExtractOptions{Ref: ref, Reslice: true})
	if err != nil {
		t.Fatalf("Extract with reslice failed: %v", err)
	}
	if got := sig.At(0, 0); math.Abs(got-4) > 1e-5 {
		t.Errorf("Expected resliced value 4, got %f", got)
	}
}
