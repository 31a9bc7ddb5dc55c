package nifti

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	log "github.com/sirupsen/logrus"

	"niiutil/pkg/volume"
)

// HeaderFor derives a NIfTI-1 header from a volume: grid extents, spacing
// from the affine diagonal, the affine itself as sform rows, and the
// volume's datatype and intensity-scaling fields carried through verbatim.
func HeaderFor(v *volume.Volume) (*Header, error) {
	bits, err := BitsFor(v.DT)
	if err != nil {
		return nil, err
	}

	hdr := &Header{
		SizeOfHdr: headerSize,
		Datatype:  v.DT,
		BitPix:    bits,
		VoxOffset: defaultVoxOffset,
		SclSlope:  v.PInfo[0],
		SclInter:  v.PInfo[1],
		SFormCode: 2, // NIFTI_XFORM_ALIGNED_ANAT
		XYZTUnits: 2, // NIFTI_UNITS_MM
		Magic:     [4]int8{'n', '+', '1', 0},
	}

	if v.Frames > 1 {
		hdr.Dim[0] = 4
		hdr.Dim[4] = int16(v.Frames)
	} else {
		hdr.Dim[0] = 3
		hdr.Dim[4] = 1
	}
	for a := 0; a < 3; a++ {
		hdr.Dim[a+1] = int16(v.Dim[a])
	}
	for a := 4; a < 8; a++ {
		if hdr.Dim[a] == 0 {
			hdr.Dim[a] = 1
		}
	}

	sp := volume.Spacing(v.Mat)
	hdr.PixDim[0] = 1
	for a := 0; a < 3; a++ {
		hdr.PixDim[a+1] = float32(sp[a])
	}

	for c := 0; c < 4; c++ {
		hdr.SRowX[c] = float32(v.Mat.At(0, c))
		hdr.SRowY[c] = float32(v.Mat.At(1, c))
		hdr.SRowZ[c] = float32(v.Mat.At(2, c))
	}
	hdr.QOffsetX = hdr.SRowX[3]
	hdr.QOffsetY = hdr.SRowY[3]
	hdr.QOffsetZ = hdr.SRowZ[3]
	return hdr, nil
}

// WriteVolume stores a volume at path, gzip-compressed when the path ends
// in .gz. Voxels are encoded back to the volume's original datatype, so a
// read-resample-write round trip changes neither dt nor calibration.
func WriteVolume(path string, v *volume.Volume) error {
	sw, err := NewStreamWriter(path, v)
	if err != nil {
		return err
	}

	planeLen := v.Dim[0] * v.Dim[1]
	for t := 0; t < v.Frames; t++ {
		frame := v.Frame(t)
		for k := 0; k < v.Dim[2]; k++ {
			if err := sw.WritePlane(frame[k*planeLen : (k+1)*planeLen]); err != nil {
				sw.Close()
				return err
			}
		}
	}
	if err := sw.Close(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"path":     path,
		"dim":      v.Dim,
		"frames":   v.Frames,
		"datatype": v.DT,
	}).Debug("wrote volume")
	return nil
}

// encodeVoxels writes float32 voxels in the on-disk datatype. Integer
// datatypes round to nearest and clamp to the representable range.
func encodeVoxels(w io.Writer, dt int16, data []float32) error {
	var buf [8]byte
	le := binary.LittleEndian
	for _, val := range data {
		var b []byte
		switch dt {
		case DTUint8:
			buf[0] = uint8(clampRound(float64(val), 0, math.MaxUint8))
			b = buf[:1]
		case DTInt16:
			le.PutUint16(buf[:], uint16(int16(clampRound(float64(val), math.MinInt16, math.MaxInt16))))
			b = buf[:2]
		case DTUint16:
			le.PutUint16(buf[:], uint16(clampRound(float64(val), 0, math.MaxUint16)))
			b = buf[:2]
		case DTInt32:
			le.PutUint32(buf[:], uint32(int32(clampRound(float64(val), math.MinInt32, math.MaxInt32))))
			b = buf[:4]
		case DTFloat32:
			le.PutUint32(buf[:], math.Float32bits(val))
			b = buf[:4]
		case DTFloat64:
			le.PutUint64(buf[:], math.Float64bits(float64(val)))
			b = buf[:8]
		default:
			return fmt.Errorf("unsupported datatype code %d", dt)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
