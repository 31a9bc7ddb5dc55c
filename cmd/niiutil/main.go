package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"niiutil/pkg/config"
	"niiutil/pkg/gsig"
	"niiutil/pkg/nifti"
	"niiutil/pkg/resample"
	"niiutil/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("in", "", "Input NIfTI volume (.nii or .nii.gz)")
	resSpec := flag.String("res", "", "Target resolution in mm: one value (isotropic) or three comma-separated values")
	order := flag.Int("order", 1, "Interpolation order: 0=nearest, 1=trilinear, >=2=tricubic")
	strategy := flag.String("strategy", "full3D", "Resampling strategy: full3D or slice2D")
	memSafe := flag.Bool("memsafe", true, "Process one output plane at a time (full3D only)")
	outputPath := flag.String("out", "", "Output path (default: derived from input name and resolution)")
	configPath := flag.String("config", "", "Optional YAML config file with defaults")
	dumpHeader := flag.Bool("dump-header", false, "Print the parsed NIfTI header as JSON and exit")
	indicesPath := flag.String("indices", "", "Extract mode: file of flat voxel indices, one per line")
	framesSpec := flag.String("frames", "", "Extract mode: comma-separated frame indices (default: all)")
	refPath := flag.String("ref", "", "Extract mode: reference volume defining the graph space")
	reslice := flag.Bool("reslice", false, "Extract mode: reslice mismatched volumes into the reference space")
	previewDir := flag.String("preview", "", "Directory to save per-slice PNG previews of the result")
	previewAxis := flag.String("preview-axis", "z", "Axis for slice previews: x, y or z")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Apply config file defaults under explicit flags
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		applyConfig(cfg, order, strategy, memSafe, reslice, verbose)
	}

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch {
	case *dumpHeader:
		runDumpHeader(*inputPath)
	case *indicesPath != "":
		runExtract(*inputPath, *indicesPath, *framesSpec, *refPath, *reslice)
	default:
		outPath := runResample(*inputPath, *resSpec, *order, *strategy, *memSafe, *outputPath, *verbose)
		if *previewDir != "" {
			runPreview(outPath, *previewDir, *previewAxis)
		}
	}
}

// runPreview saves per-slice PNGs of the first frame of a volume.
func runPreview(path, dir, axis string) {
	v, err := nifti.ReadVolume(path)
	if err != nil {
		log.Fatalf("Failed to read volume for preview: %v", err)
	}
	viewer, err := visualization.NewViewer(v, 0)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}
	if err := viewer.SaveSliceSequence(axis, dir); err != nil {
		log.Fatalf("Failed to save previews: %v", err)
	}
	fmt.Printf("Slice previews saved to: %s\n", dir)
}

// applyConfig copies config file values into flags the user did not set.
func applyConfig(cfg *config.Config, order *int, strategy *string, memSafe, reslice, verbose *bool) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["order"] {
		*order = cfg.Resample.Order
	}
	if !set["strategy"] {
		*strategy = cfg.Resample.Strategy
	}
	if !set["memsafe"] {
		*memSafe = cfg.Resample.MemorySafe
	}
	if !set["reslice"] {
		*reslice = cfg.Extract.Reslice
	}
	if !set["verbose"] {
		*verbose = cfg.Output.Verbose
	}
}

func runResample(inputPath, resSpec string, order int, strategyName string, memSafe bool, outputPath string, verbose bool) string {
	if resSpec == "" {
		log.Fatal("Resampling requires -res")
	}
	res, err := parseResolution(resSpec)
	if err != nil {
		log.Fatalf("Bad resolution: %v", err)
	}

	var strat resample.Strategy
	switch strategyName {
	case "full3D":
		strat = resample.Full3D
	case "slice2D":
		strat = resample.Slice2D
	default:
		log.Fatalf("Unknown strategy %q (want full3D or slice2D)", strategyName)
	}

	if verbose {
		if hdr, err := nifti.ReadHeader(inputPath); err == nil {
			planeBytes := uint64(hdr.Dim[1]) * uint64(hdr.Dim[2]) * uint64(hdr.BitPix/8)
			fmt.Printf("Input grid: %dx%dx%d, plane buffer ~%s\n",
				hdr.Dim[1], hdr.Dim[2], hdr.Dim[3], humanize.Bytes(planeBytes))
		}
	}

	opts := resample.Options{
		Order:      order,
		Strategy:   strat,
		MemorySafe: memSafe,
		OutputPath: outputPath,
	}

	start := time.Now()
	outPath, err := resample.Resample(inputPath, res, opts)
	if err != nil {
		log.Fatalf("Resampling failed: %v", err)
	}
	fmt.Printf("Resampled volume saved to: %s (%.2fs)\n", outPath, time.Since(start).Seconds())
	return outPath
}

func runDumpHeader(inputPath string) {
	hdr, err := nifti.ReadHeader(inputPath)
	if err != nil {
		log.Fatalf("Failed to read header: %v", err)
	}
	out, err := json.MarshalIndent(hdr, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode header: %v", err)
	}
	fmt.Println(string(out))
}

func runExtract(inputPath, indicesPath, framesSpec, refPath string, reslice bool) {
	indices, err := readIndices(indicesPath)
	if err != nil {
		log.Fatalf("Failed to read indices: %v", err)
	}

	opts := gsig.ExtractOptions{Reslice: reslice}
	if framesSpec != "" {
		for _, tok := range strings.Split(framesSpec, ",") {
			t, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				log.Fatalf("Bad frame index %q: %v", tok, err)
			}
			opts.Frames = append(opts.Frames, t)
		}
	}
	if refPath != "" {
		refVol, err := nifti.ReadVolume(refPath)
		if err != nil {
			log.Fatalf("Failed to read reference volume: %v", err)
		}
		opts.Ref = &gsig.RefSpace{Dim: refVol.Dim, Mat: refVol.Mat}
	}

	sig, err := gsig.Extract(inputPath, indices, opts)
	if err != nil {
		log.Fatalf("Extraction failed: %v", err)
	}

	// One row per index, tab-separated frames
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	rows, cols := sig.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprintf(w, "%g", sig.At(r, c))
		}
		fmt.Fprintln(w)
	}
}

// parseResolution accepts "2" or "1,1,2".
func parseResolution(spec string) (resample.Resolution, error) {
	parts := strings.Split(spec, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return resample.Resolution{}, err
		}
		vals = append(vals, v)
	}
	return resample.NewResolution(vals...)
}

// readIndices loads flat voxel indices, one per line; blank lines and
// lines starting with # are skipped.
func readIndices(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var indices []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("bad voxel index %q: %w", line, err)
		}
		indices = append(indices, idx)
	}
	return indices, scanner.Err()
}
