package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"niiutil/pkg/volume"
)

// readAll returns the fully decompressed file contents.
func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if IsGzipped(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("nifti: decompressing %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

// parseHeader decodes the 348-byte header, detecting byte order from
// sizeof_hdr.
func parseHeader(raw []byte) (*Header, binary.ByteOrder, error) {
	if len(raw) < headerSize {
		return nil, nil, fmt.Errorf("nifti: file too short for header: %d bytes", len(raw))
	}

	var order binary.ByteOrder = binary.LittleEndian
	hdr := new(Header)
	if err := binary.Read(bytes.NewReader(raw), order, hdr); err != nil {
		return nil, nil, err
	}
	if hdr.SizeOfHdr != headerSize {
		order = binary.BigEndian
		if err := binary.Read(bytes.NewReader(raw), order, hdr); err != nil {
			return nil, nil, err
		}
		if hdr.SizeOfHdr != headerSize {
			return nil, nil, fmt.Errorf("nifti: bad sizeof_hdr %d, not a NIfTI-1 file", hdr.SizeOfHdr)
		}
	}

	magic := string([]byte{byte(hdr.Magic[0]), byte(hdr.Magic[1]), byte(hdr.Magic[2])})
	if magic != "n+1" && magic != "ni1" {
		return nil, nil, fmt.Errorf("nifti: bad magic %q", magic)
	}
	return hdr, order, nil
}

// ReadHeader parses the header of a .nii or .nii.gz file.
func ReadHeader(path string) (*Header, error) {
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	raw, err := readAll(path)
	if err != nil {
		return nil, err
	}
	hdr, _, err := parseHeader(raw)
	return hdr, err
}

// Affine builds the 4x4 voxel-to-millimeter transform from the header,
// preferring the sform rows when a valid sform code is set and falling
// back to a diagonal pixdim transform with the quaternion offsets.
func (h *Header) Affine() *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	if h.SFormCode > 0 {
		for c := 0; c < 4; c++ {
			a.Set(0, c, float64(h.SRowX[c]))
			a.Set(1, c, float64(h.SRowY[c]))
			a.Set(2, c, float64(h.SRowZ[c]))
		}
	} else {
		a.Set(0, 0, float64(h.PixDim[1]))
		a.Set(1, 1, float64(h.PixDim[2]))
		a.Set(2, 2, float64(h.PixDim[3]))
		a.Set(0, 3, float64(h.QOffsetX))
		a.Set(1, 3, float64(h.QOffsetY))
		a.Set(2, 3, float64(h.QOffsetZ))
	}
	a.Set(3, 3, 1)
	return a
}

// ReadVolume loads a full volume, header and voxel data, into memory.
// Stored values are returned raw, without scl_slope/scl_inter applied, so
// the calibration survives a read-resample-write cycle untouched.
func ReadVolume(path string) (*volume.Volume, error) {
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	raw, err := readAll(path)
	if err != nil {
		return nil, err
	}
	hdr, order, err := parseHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 4 {
		return nil, fmt.Errorf("nifti: %s: %d-dimensional volumes are not supported", path, ndim)
	}
	dim := [3]int{int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])}
	frames := 1
	if ndim == 4 && hdr.Dim[4] > 1 {
		frames = int(hdr.Dim[4])
	}

	v, err := volume.New(dim, frames, hdr.Affine())
	if err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}
	v.DT = hdr.Datatype
	v.PInfo = [2]float32{hdr.SclSlope, hdr.SclInter}

	bits, err := BitsFor(hdr.Datatype)
	if err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}
	offset := int(hdr.VoxOffset)
	if offset < headerSize {
		offset = defaultVoxOffset
	}
	need := len(v.Data) * int(bits) / 8
	if len(raw) < offset+need {
		return nil, fmt.Errorf("nifti: %s: truncated voxel data: have %d bytes, need %d",
			path, len(raw)-offset, need)
	}
	if err := decodeVoxels(raw[offset:offset+need], hdr.Datatype, order, v.Data); err != nil {
		return nil, fmt.Errorf("nifti: %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":     path,
		"dim":      dim,
		"frames":   frames,
		"datatype": hdr.Datatype,
	}).Debug("loaded volume")
	return v, nil
}

// decodeVoxels converts raw on-disk voxels to float32 in place of dst.
func decodeVoxels(raw []byte, dt int16, order binary.ByteOrder, dst []float32) error {
	switch dt {
	case DTUint8:
		for i := range dst {
			dst[i] = float32(raw[i])
		}
	case DTInt16:
		for i := range dst {
			dst[i] = float32(int16(order.Uint16(raw[2*i:])))
		}
	case DTUint16:
		for i := range dst {
			dst[i] = float32(order.Uint16(raw[2*i:]))
		}
	case DTInt32:
		for i := range dst {
			dst[i] = float32(int32(order.Uint32(raw[4*i:])))
		}
	case DTFloat32:
		for i := range dst {
			dst[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
	case DTFloat64:
		for i := range dst {
			dst[i] = float32(math.Float64frombits(order.Uint64(raw[8*i:])))
		}
	default:
		return fmt.Errorf("unsupported datatype code %d", dt)
	}
	return nil
}
