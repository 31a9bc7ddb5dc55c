package interp

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/volume"
)

// linearVolume fills a volume with a field linear in each axis, which
// trilinear interpolation reproduces exactly away from the border
func linearVolume(t *testing.T, dim [3]int) *volume.Volume {
	t.Helper()
	affine := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		affine.Set(r, r, 1)
	}
	v, err := volume.New(dim, 1, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	for k := 0; k < dim[2]; k++ {
		for j := 0; j < dim[1]; j++ {
			for i := 0; i < dim[0]; i++ {
				v.SetAt(i, j, k, 0, float32(1+0.5*float64(i)+0.25*float64(j)+0.125*float64(k)))
			}
		}
	}
	return v
}

func linearField(x, y, z float64) float64 {
	return 1 + 0.5*x + 0.25*y + 0.125*z
}

// TestNewOrders verifies order-to-sampler selection and rejection of
// negative orders
func TestNewOrders(t *testing.T) {
	v := linearVolume(t, [3]int{4, 4, 4})

	for _, order := range []int{0, 1, 2, 3, 7} {
		s, err := New(v, order)
		if err != nil {
			t.Fatalf("Order %d: unexpected error: %v", order, err)
		}
		if s.Order() != order {
			t.Errorf("Order %d: sampler reports %d", order, s.Order())
		}
	}

	if _, err := New(v, -1); err == nil {
		t.Error("Expected error for negative order")
	}
}

// TestNearestAtCenters verifies that nearest-neighbor sampling reproduces
// stored values at and around voxel centers
func TestNearestAtCenters(t *testing.T) {
	v := linearVolume(t, [3]int{4, 4, 4})
	s, _ := New(v, 0)

	for k := 0; k < 4; k++ {
		for j := 0; j < 4; j++ {
			for i := 0; i < 4; i++ {
				want := float64(v.At(i, j, k, 0))
				got := s.At(float64(i), float64(j), float64(k), 0)
				if got != want {
					t.Fatalf("At (%d,%d,%d): expected %f, got %f", i, j, k, want, got)
				}
				// A small offset should snap to the same voxel.
				got = s.At(float64(i)+0.3, float64(j)-0.3, float64(k)+0.2, 0)
				if got != want {
					t.Fatalf("Offset near (%d,%d,%d): expected %f, got %f", i, j, k, want, got)
				}
			}
		}
	}
}

// TestTrilinearExactOnLinearField verifies that trilinear sampling is
// exact for a field linear in each axis
func TestTrilinearExactOnLinearField(t *testing.T) {
	v := linearVolume(t, [3]int{6, 6, 6})
	s, _ := New(v, 1)

	coords := [][3]float64{
		{0.5, 0.5, 0.5},
		{1.25, 2.75, 3.5},
		{4.0, 4.0, 4.0},
		{0.1, 4.9, 2.3},
	}
	for _, c := range coords {
		want := linearField(c[0], c[1], c[2])
		got := s.At(c[0], c[1], c[2], 0)
		if math.Abs(got-want) > 1e-5 {
			t.Errorf("At %v: expected %f, got %f", c, want, got)
		}
	}
}

// TestTricubicOnConstantField verifies that cubic convolution weights sum
// to one, reproducing a constant field away from the border
func TestTricubicOnConstantField(t *testing.T) {
	affine := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		affine.Set(r, r, 1)
	}
	v, err := volume.New([3]int{8, 8, 8}, 1, affine)
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	for i := range v.Data {
		v.Data[i] = 3
	}

	s, _ := New(v, 3)
	coords := [][3]float64{
		{2.5, 3.5, 4.5},
		{3.1, 3.9, 2.2},
		{4.0, 4.0, 4.0},
	}
	for _, c := range coords {
		got := s.At(c[0], c[1], c[2], 0)
		if math.Abs(got-3) > 1e-6 {
			t.Errorf("At %v: expected 3, got %f", c, got)
		}
	}
}

// TestOutOfBoundsFill verifies that samples outside the grid return the
// fill value for every order
func TestOutOfBoundsFill(t *testing.T) {
	v := linearVolume(t, [3]int{4, 4, 4})

	for _, order := range []int{0, 1, 2} {
		s, _ := New(v, order)
		for _, c := range [][3]float64{
			{-10, 1, 1},
			{1, 20, 1},
			{1, 1, -5},
		} {
			if got := s.At(c[0], c[1], c[2], 0); got != 0 {
				t.Errorf("Order %d at %v: expected fill value 0, got %f", order, c, got)
			}
		}
	}
}

// TestSamplePlaneIdentity verifies that sampling a plane through the
// identity transform reproduces the stored slice
func TestSamplePlaneIdentity(t *testing.T) {
	v := linearVolume(t, [3]int{4, 5, 6})
	s, _ := New(v, 0)

	ident := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		ident.Set(r, r, 1)
	}

	dst := make([]float32, 4*5)
	for k := 0; k < 6; k++ {
		SamplePlane(s, ident, k, 4, 5, 0, dst)
		for j := 0; j < 5; j++ {
			for i := 0; i < 4; i++ {
				if dst[j*4+i] != v.At(i, j, k, 0) {
					t.Fatalf("Plane %d voxel (%d,%d): expected %f, got %f",
						k, i, j, v.At(i, j, k, 0), dst[j*4+i])
				}
			}
		}
	}
}

// TestSliceTransform verifies that folding the slice index into the
// translation column matches direct evaluation at that slice
func TestSliceTransform(t *testing.T) {
	a := mat.NewDense(4, 4, []float64{
		2, 0, 0, 1,
		0, 2, 0, -1,
		0, 0, 2, 0.5,
		0, 0, 0, 1,
	})

	for k := 0; k < 5; k++ {
		mk := SliceTransform(a, k)
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				x0, y0, z0 := volume.Apply(a, float64(i), float64(j), float64(k))
				x1, y1, z1 := volume.Apply(mk, float64(i), float64(j), 0)
				if math.Abs(x0-x1) > 1e-12 || math.Abs(y0-y1) > 1e-12 || math.Abs(z0-z1) > 1e-12 {
					t.Fatalf("Slice %d voxel (%d,%d): transform mismatch (%f,%f,%f) vs (%f,%f,%f)",
						k, i, j, x0, y0, z0, x1, y1, z1)
				}
			}
		}
	}
}
