// Package nifti reads and writes NIfTI-1 single-file volumes (.nii and
// .nii.gz). Only the single-file variant is handled; header/image pairs
// (.hdr/.img) are not.
//
// Field layout follows the official nifti1.h definition. Type translation
// from the C header:
//
//	C     Go
//	-------------
//	int   int32
//	float float32
//	short int16
//	char  int8
package nifti

import (
	"fmt"
	"strings"
)

// Datatype codes from nifti1.h. Only the codes listed here can be read or
// written; anything else fails with a descriptive error.
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTUint16  int16 = 512
)

// headerSize is the fixed NIfTI-1 header length in bytes.
const headerSize = 348

// defaultVoxOffset is where voxel data starts in a single-file volume:
// the header plus the 4-byte extension flag.
const defaultVoxOffset = 352

// Header is the on-disk NIfTI-1 header. The layout matches the 348-byte
// binary format exactly so it can be read and written with encoding/binary.
type Header struct {
	SizeOfHdr    int32    // Must be 348
	DataTypeName [10]int8 // Unused
	DBName       [18]int8 // Unused
	Extents      int32    // Unused
	SessionError int16    // Unused
	Regular      int8     // Unused
	DimInfo      int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	Datatype      int16      // Defines data type
	BitPix        int16      // Number of bits per voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for one slice
	TOffset       float32    // Time axis shift
	GlMax         int32      // Unused
	GlMin         int32      // Unused

	Descrip [80]int8 // Any text
	AuxFile [24]int8 // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b param
	QuaternC float32 // Quaternion c param
	QuaternD float32 // Quaternion d param
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row of affine transform
	SRowY [4]float32 // 2nd row of affine transform
	SRowZ [4]float32 // 3rd row of affine transform

	IntentName [16]int8 // Name or meaning of data
	Magic      [4]int8  // Must be "n+1\0" or "ni1\0"
}

// BitsFor returns the bits-per-voxel for a supported datatype code.
func BitsFor(dt int16) (int16, error) {
	switch dt {
	case DTUint8:
		return 8, nil
	case DTInt16, DTUint16:
		return 16, nil
	case DTInt32, DTFloat32:
		return 32, nil
	case DTFloat64:
		return 64, nil
	}
	return 0, fmt.Errorf("nifti: unsupported datatype code %d", dt)
}

// UnknownFormatError reports a path whose extension is not a recognized
// volume format.
type UnknownFormatError struct {
	Path string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("nifti: unrecognized volume format: %s", e.Path)
}

// IsGzipped reports whether the path names a gzip-compressed volume.
func IsGzipped(path string) bool {
	return strings.HasSuffix(path, ".nii.gz")
}

// CheckPath validates that the path carries a recognized volume extension.
func CheckPath(path string) error {
	if strings.HasSuffix(path, ".nii") || strings.HasSuffix(path, ".nii.gz") {
		return nil
	}
	return &UnknownFormatError{Path: path}
}

// BaseName strips the volume extension from the final path element, giving
// the stem that derived output names are built from.
func BaseName(path string) string {
	s := strings.TrimSuffix(path, ".nii.gz")
	return strings.TrimSuffix(s, ".nii")
}
