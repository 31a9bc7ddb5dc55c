package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/volume"
)

// makeVolume builds a small volume with a bright column at x=1 so slice
// orientation is checkable
func makeVolume(t *testing.T) *volume.Volume {
	t.Helper()
	affine := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		affine.Set(r, r, 1)
	}
	v, err := volume.New([3]int{3, 4, 5}, 2, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	for k := 0; k < 5; k++ {
		for j := 0; j < 4; j++ {
			v.SetAt(1, j, k, 0, 100)
			v.SetAt(1, j, k, 1, 50)
		}
	}
	return v
}

// TestNewViewer verifies frame validation and window ceiling computation
func TestNewViewer(t *testing.T) {
	v := makeVolume(t)

	viewer, err := NewViewer(v, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if viewer.maxIntensity != 100 {
		t.Errorf("Expected frame max 100, got %f", viewer.maxIntensity)
	}

	if _, err := NewViewer(v, 2); err == nil {
		t.Error("Expected error for out-of-range frame")
	}
}

// TestExtractSlice verifies slice dimensions and window scaling per axis
func TestExtractSlice(t *testing.T) {
	v := makeVolume(t)
	viewer, _ := NewViewer(v, 0)

	// z slice is width x height
	img, err := viewer.ExtractSlice("z", 2)
	if err != nil {
		t.Fatalf("Failed to extract z slice: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 4 {
		t.Errorf("Expected 3x4 z slice, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// The bright column maps to full white, the background to black.
	r, _, _, _ := img.At(1, 0).RGBA()
	if r != 0xffff {
		t.Errorf("Expected bright column at full intensity, got %#x", r)
	}
	r, _, _, _ = img.At(0, 0).RGBA()
	if r != 0 {
		t.Errorf("Expected dark background, got %#x", r)
	}

	// x slice is depth x height
	img, err = viewer.ExtractSlice("x", 1)
	if err != nil {
		t.Fatalf("Failed to extract x slice: %v", err)
	}
	bounds = img.Bounds()
	if bounds.Dx() != 5 || bounds.Dy() != 4 {
		t.Errorf("Expected 5x4 x slice, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// y slice is width x depth
	img, err = viewer.ExtractSlice("y", 3)
	if err != nil {
		t.Fatalf("Failed to extract y slice: %v", err)
	}
	bounds = img.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 5 {
		t.Errorf("Expected 3x5 y slice, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// Invalid requests
	if _, err := viewer.ExtractSlice("w", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
	if _, err := viewer.ExtractSlice("z", 5); err == nil {
		t.Error("Expected error for out-of-range position")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position")
	}
}

// TestSaveSliceSequence verifies that one PNG per slice is written
func TestSaveSliceSequence(t *testing.T) {
	v := makeVolume(t)
	viewer, _ := NewViewer(v, 0)

	dir := filepath.Join(t.TempDir(), "previews")
	if err := viewer.SaveSliceSequence("z", dir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list output directory: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 slice images, got %d", len(entries))
	}

	// Files must decode as PNG.
	f, err := os.Open(filepath.Join(dir, "slice_z_000.png"))
	if err != nil {
		t.Fatalf("Failed to open slice image: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("Slice image is not valid PNG: %v", err)
	}
}
