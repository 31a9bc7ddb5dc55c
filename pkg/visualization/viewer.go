// Package visualization exports 2D previews of volume slices as PNG
// images, for quick visual checks of resampling output.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"niiutil/pkg/volume"
)

// Viewer renders axis-aligned slices of a volume frame to grayscale
// images. Intensities are window-scaled against the frame maximum.
type Viewer struct {
	// vol is the volume being previewed
	vol *volume.Volume

	// frame selects the time point to render
	frame int

	// maxIntensity is the window ceiling, precomputed per frame
	maxIntensity float64
}

// NewViewer creates a viewer over one frame of a volume.
func NewViewer(vol *volume.Volume, frame int) (*Viewer, error) {
	if frame < 0 || frame >= vol.Frames {
		return nil, fmt.Errorf("visualization: frame %d out of range [0, %d)", frame, vol.Frames)
	}
	v := &Viewer{vol: vol, frame: frame}
	for _, val := range vol.Frame(frame) {
		if f := float64(val); f > v.maxIntensity {
			v.maxIntensity = f
		}
	}
	return v, nil
}

// window maps an intensity to the 16-bit grayscale range against the
// frame maximum, clamping negatives to black.
func (v *Viewer) window(intensity float64) uint16 {
	if intensity < 0 || v.maxIntensity == 0 {
		return 0
	}
	return uint16(math.Min(math.MaxUint16, math.MaxUint16*intensity/v.maxIntensity))
}

// ExtractSlice renders a 2D slice along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	d := v.vol.Dim

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Slice along the YZ plane
		if position >= d[0] {
			return nil, fmt.Errorf("position %d exceeds width %d", position, d[0])
		}
		img = image.NewGray16(image.Rect(0, 0, d[2], d[1]))
		for y := 0; y < d[1]; y++ {
			for z := 0; z < d[2]; z++ {
				val := float64(v.vol.At(position, y, z, v.frame))
				img.SetGray16(z, y, color.Gray16{Y: v.window(val)})
			}
		}

	case "y", "Y":
		// Slice along the XZ plane
		if position >= d[1] {
			return nil, fmt.Errorf("position %d exceeds height %d", position, d[1])
		}
		img = image.NewGray16(image.Rect(0, 0, d[0], d[2]))
		for z := 0; z < d[2]; z++ {
			for x := 0; x < d[0]; x++ {
				val := float64(v.vol.At(x, position, z, v.frame))
				img.SetGray16(x, z, color.Gray16{Y: v.window(val)})
			}
		}

	case "z", "Z":
		// Slice along the XY plane
		if position >= d[2] {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, d[2])
		}
		img = image.NewGray16(image.Rect(0, 0, d[0], d[1]))
		for y := 0; y < d[1]; y++ {
			for x := 0; x < d[0]; x++ {
				val := float64(v.vol.At(x, y, position, v.frame))
				img.SetGray16(x, y, color.Gray16{Y: v.window(val)})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Dim[0]
	case "y", "Y":
		maxPos = v.vol.Dim[1]
	case "z", "Z":
		maxPos = v.vol.Dim[2]
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
