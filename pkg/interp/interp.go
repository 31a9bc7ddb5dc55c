// Package interp provides the sampling primitives used to evaluate a voxel
// grid at arbitrary, generally non-integer coordinates. Samplers are
// selected by interpolation order: 0 is nearest-neighbor, 1 is trilinear,
// and 2 or above is tricubic convolution.
package interp

import (
	"fmt"
	"math"

	"niiutil/pkg/volume"
)

// fillValue is returned for samples that fall outside the source grid.
const fillValue = 0.0

// Sampler evaluates one frame of a source volume at an arbitrary
// voxel-space coordinate. Samplers are stateless and safe for reuse
// across planes.
type Sampler interface {
	// At samples frame t at the voxel coordinate (x, y, z). Coordinates
	// outside the source extent yield the fill value.
	At(x, y, z float64, t int) float64

	// Order reports the interpolation order the sampler implements.
	Order() int
}

var (
	_ Sampler = &nearestSampler{}
	_ Sampler = &trilinearSampler{}
	_ Sampler = &tricubicSampler{}
)

// New constructs a sampler over src for the given interpolation order.
// Orders of 2 and above all map to the tricubic sampler.
func New(src *volume.Volume, order int) (Sampler, error) {
	if order < 0 {
		return nil, fmt.Errorf("interp: order %d, must be >= 0", order)
	}
	switch order {
	case 0:
		return &nearestSampler{src: src}, nil
	case 1:
		return &trilinearSampler{src: src}, nil
	default:
		return &tricubicSampler{src: src, order: order}, nil
	}
}

// nearestSampler rounds each coordinate to the closest voxel center.
type nearestSampler struct {
	src *volume.Volume
}

func (s *nearestSampler) Order() int { return 0 }

func (s *nearestSampler) At(x, y, z float64, t int) float64 {
	i := int(math.Round(x))
	j := int(math.Round(y))
	k := int(math.Round(z))
	d := s.src.Dim
	if i < 0 || j < 0 || k < 0 || i >= d[0] || j >= d[1] || k >= d[2] {
		return fillValue
	}
	return float64(s.src.At(i, j, k, t))
}

// trilinearSampler blends the eight surrounding voxel centers with
// weights linear in each axis. Neighbors outside the grid contribute the
// fill value, which tapers intensities to zero at the volume border.
type trilinearSampler struct {
	src *volume.Volume
}

func (s *trilinearSampler) Order() int { return 1 }

func (s *trilinearSampler) At(x, y, z float64, t int) float64 {
	i0 := int(math.Floor(x))
	j0 := int(math.Floor(y))
	k0 := int(math.Floor(z))
	fx := x - float64(i0)
	fy := y - float64(j0)
	fz := z - float64(k0)

	var acc float64
	for dk := 0; dk <= 1; dk++ {
		wz := fz
		if dk == 0 {
			wz = 1 - fz
		}
		if wz == 0 {
			continue
		}
		for dj := 0; dj <= 1; dj++ {
			wy := fy
			if dj == 0 {
				wy = 1 - fy
			}
			if wy == 0 {
				continue
			}
			for di := 0; di <= 1; di++ {
				wx := fx
				if di == 0 {
					wx = 1 - fx
				}
				if wx == 0 {
					continue
				}
				acc += wx * wy * wz * s.sample(i0+di, j0+dj, k0+dk, t)
			}
		}
	}
	return acc
}

func (s *trilinearSampler) sample(i, j, k, t int) float64 {
	d := s.src.Dim
	if i < 0 || j < 0 || k < 0 || i >= d[0] || j >= d[1] || k >= d[2] {
		return fillValue
	}
	return float64(s.src.At(i, j, k, t))
}

// tricubicSampler implements separable cubic convolution over a 4x4x4
// neighborhood using the Keys kernel (a = -0.5). It stands in for all
// requested orders above 1.
type tricubicSampler struct {
	src   *volume.Volume
	order int
}

func (s *tricubicSampler) Order() int { return s.order }

// cubicWeights fills w with the four Keys kernel weights for fractional
// offset f in [0, 1), covering neighbors at offsets -1, 0, +1, +2.
func cubicWeights(f float64, w *[4]float64) {
	const a = -0.5
	f2 := f * f
	f3 := f2 * f
	w[0] = a * (f3 - 2*f2 + f)
	w[1] = (a+2)*f3 - (a+3)*f2 + 1
	w[2] = -(a+2)*f3 + (2*a+3)*f2 - a*f
	w[3] = a * (f2 - f3)
}

func (s *tricubicSampler) At(x, y, z float64, t int) float64 {
	i0 := int(math.Floor(x))
	j0 := int(math.Floor(y))
	k0 := int(math.Floor(z))

	var wx, wy, wz [4]float64
	cubicWeights(x-float64(i0), &wx)
	cubicWeights(y-float64(j0), &wy)
	cubicWeights(z-float64(k0), &wz)

	d := s.src.Dim
	var acc float64
	for dk := -1; dk <= 2; dk++ {
		k := k0 + dk
		ck := wz[dk+1]
		if ck == 0 {
			continue
		}
		for dj := -1; dj <= 2; dj++ {
			j := j0 + dj
			cj := ck * wy[dj+1]
			if cj == 0 {
				continue
			}
			for di := -1; di <= 2; di++ {
				i := i0 + di
				ci := cj * wx[di+1]
				if ci == 0 {
					continue
				}
				if i < 0 || j < 0 || k < 0 || i >= d[0] || j >= d[1] || k >= d[2] {
					acc += ci * fillValue
					continue
				}
				acc += ci * float64(s.src.At(i, j, k, t))
			}
		}
	}
	return acc
}
