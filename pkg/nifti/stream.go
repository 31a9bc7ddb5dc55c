package nifti

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"niiutil/pkg/volume"
)

// StreamWriter emits a volume one plane at a time, so callers producing
// planes sequentially never hold more voxel data than a single slice.
// The header is written up front from the volume's metadata; Data may be
// nil. Planes must arrive in storage order: all slices of frame 0, then
// frame 1, and so on.
type StreamWriter struct {
	f  *os.File
	bw *bufio.Writer
	gz *gzip.Writer
	w  io.Writer

	dt         int16
	planeLen   int
	planesLeft int
}

// NewStreamWriter opens path and writes the header for v. The returned
// writer expects exactly Dim[2]*Frames planes of Dim[0]*Dim[1] voxels.
func NewStreamWriter(path string, v *volume.Volume) (*StreamWriter, error) {
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	hdr, err := HeaderFor(v)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if IsGzipped(path) {
		gz = gzip.NewWriter(bw)
		w = gz
	}

	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		f.Close()
		return nil, err
	}
	// Extension flag: no header extensions.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		f.Close()
		return nil, err
	}

	return &StreamWriter{
		f:          f,
		bw:         bw,
		gz:         gz,
		w:          w,
		dt:         v.DT,
		planeLen:   v.Dim[0] * v.Dim[1],
		planesLeft: v.Dim[2] * v.Frames,
	}, nil
}

// WritePlane appends one plane of voxels, encoded to the on-disk datatype.
func (sw *StreamWriter) WritePlane(data []float32) error {
	if len(data) != sw.planeLen {
		return fmt.Errorf("nifti: plane has %d voxels, expected %d", len(data), sw.planeLen)
	}
	if sw.planesLeft == 0 {
		return fmt.Errorf("nifti: all planes already written")
	}
	if err := encodeVoxels(sw.w, sw.dt, data); err != nil {
		return err
	}
	sw.planesLeft--
	return nil
}

// Close flushes and closes the output file. It fails if fewer planes were
// written than the header promises.
func (sw *StreamWriter) Close() error {
	var firstErr error
	if sw.planesLeft != 0 {
		firstErr = fmt.Errorf("nifti: %d planes missing at close", sw.planesLeft)
	}
	if sw.gz != nil {
		if err := sw.gz.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := sw.bw.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := sw.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
