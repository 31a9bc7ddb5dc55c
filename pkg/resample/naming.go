package resample

import (
	"fmt"
	"math"

	"niiutil/pkg/nifti"
)

// DeriveOutputPath builds the output filename from the input base name.
// An isotropic resolution r encodes as a 4-digit millimeter-times-1000
// code, e.g. 2 mm gives "_res2000"; anisotropic resolutions use the
// generic "_resampled" tag. The output keeps the input's compression.
func DeriveOutputPath(inputPath string, res Resolution) string {
	base := nifti.BaseName(inputPath)

	var suffix string
	if res.IsIsotropic() {
		suffix = fmt.Sprintf("_res%04d", int(math.Round(res[0]*1e3)))
	} else {
		suffix = "_resampled"
	}

	ext := ".nii"
	if nifti.IsGzipped(inputPath) {
		ext = ".nii.gz"
	}
	return base + suffix + ext
}
