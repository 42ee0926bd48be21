// dicom2png converts DICOM files into 8-bit PNGs, applying the clinical
// window stored in each file (or the full pixel range when asked) so the
// output is viewable anywhere.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	automorph "github.com/Shamay/AutoMorph"
	"github.com/Shamay/AutoMorph/bulkconvert"
	_ "github.com/Shamay/AutoMorph/compileinfoprint"
)

func main() {

	var inputPath, outputPath, outputDir, pattern, manifest, targz string
	var noWindowing, includeOverlay, label, hist bool
	var width int

	flag.StringVar(&inputPath, "input", ".", "Path to a DICOM file, or to a folder whose DICOM files will all be converted. May be a gs:// path.")
	flag.StringVar(&outputPath, "out", "", "Output PNG path when converting a single file. Defaults to the DICOM's name with a .png extension, alongside it.")
	flag.StringVar(&outputDir, "outdir", "", "Folder where the extracted PNGs will go when converting a folder. Defaults to alongside each DICOM.")
	flag.StringVar(&pattern, "pattern", "*.dcm", "Glob pattern selecting DICOM files when converting a folder.")
	flag.BoolVar(&noWindowing, "no-windowing", false, "Ignore the DICOM window center/width and stretch the full pixel range instead?")
	flag.BoolVar(&includeOverlay, "include-overlay", false, "Print the overlay on top of the images?")
	flag.IntVar(&width, "width", 0, "If nonzero, resize each PNG to this width, preserving the aspect ratio")
	flag.BoolVar(&label, "label", false, "Print the DICOM name onto the top left corner of each image?")
	flag.StringVar(&manifest, "manifest", "", "If set, a tab-delimited manifest of every conversion attempt will be written to this path")
	flag.StringVar(&targz, "targz", "", "If set, the converted PNGs will additionally be bundled into a tar.gz archive at this path")
	flag.BoolVar(&hist, "hist", false, "Print a terminal histogram of the raw pixel intensities before converting (single-file mode only)?")
	flag.Parse()

	fmt.Fprintln(os.Stderr, strings.Join(os.Args, " "))

	inputPath = automorph.ExpandHome(inputPath)
	outputPath = automorph.ExpandHome(outputPath)
	outputDir = automorph.ExpandHome(outputDir)
	manifest = automorph.ExpandHome(manifest)
	targz = automorph.ExpandHome(targz)

	opts := []func(o *bulkconvert.ConvertOptions){
		bulkconvert.OptOnResult(printResult),
	}
	if noWindowing {
		opts = append(opts, bulkconvert.OptNoWindowing())
	}
	if includeOverlay {
		opts = append(opts, bulkconvert.OptIncludeOverlay())
	}
	if width > 0 {
		opts = append(opts, bulkconvert.OptResizeWidth(width))
	}
	if label {
		opts = append(opts, bulkconvert.OptLabel())
	}

	// Only Google Storage inputs need a client.
	var client *storage.Client
	if strings.HasPrefix(inputPath, "gs://") {
		var err error
		client, err = storage.NewClient(context.Background())
		if err != nil {
			log.Fatalln(err)
		}
		opts = append(opts, bulkconvert.OptStorageClient(client))
	}

	var err error
	if isZip(inputPath) {
		err = runZip(inputPath, outputDir, pattern, manifest, targz, opts)
	} else if isFolder(inputPath) {
		err = runDir(inputPath, outputDir, pattern, manifest, targz, opts)
	} else {
		err = run(inputPath, outputPath, hist, client, opts)
	}

	if err != nil {
		log.Fatalln(err)
	}
}

// isZip routes .zip archives, local or remote, to the streaming converter.
func isZip(inputPath string) bool {
	return strings.EqualFold(path.Ext(strings.TrimSuffix(inputPath, "/")), ".zip")
}

// isFolder decides between single-file and folder mode. A local path that
// exists as neither is fatal. Remote paths cannot be Stat'ed, so anything
// without an extension is treated as a folder.
func isFolder(inputPath string) bool {
	if strings.HasPrefix(inputPath, "gs://") {
		return path.Ext(strings.TrimSuffix(inputPath, "/")) == ""
	}

	fileInfo, err := os.Stat(inputPath)
	if err != nil {
		log.Fatalln(err)
	}

	return fileInfo.IsDir()
}

func printResult(res bulkconvert.ConversionResult) {
	if res.Err != nil {
		log.Println(res.Err.Error(), "Skipping file", res.Input, "...")
		return
	}

	fmt.Printf("Converted: %s -> %s\n", res.Input, res.Output)
}

func run(inputPath, outputPath string, hist bool, client *storage.Client, opts []func(o *bulkconvert.ConvertOptions)) error {
	if !hist {
		bulkconvert.ConvertOne(inputPath, outputPath, opts...)

		// The outcome has already been reported by the observer.
		return nil
	}

	// The histogram needs the raw samples, so decode once and reuse the
	// dataset for the conversion.
	img, err := bulkconvert.DecodeDicom(inputPath, client)
	if err != nil {
		printResult(bulkconvert.ConversionResult{Input: inputPath, Err: err})
		return nil
	}

	if err := printIntensityHistogram(img.Samples); err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = bulkconvert.OutputName(inputPath, "")
	}
	bulkconvert.ConvertDecoded(img, outputPath, opts...)

	return nil
}

func runDir(inputPath, outputDir, pattern, manifest, targz string, opts []func(o *bulkconvert.ConvertOptions)) error {
	results, err := bulkconvert.ConvertDir(inputPath, outputDir, pattern, opts...)
	if errors.Is(err, bulkconvert.ErrNoMatches) {
		log.Printf("No DICOM files found matching %s in %s\n", pattern, inputPath)
		return nil
	} else if err != nil {
		return err
	}

	return finishBatch(results, manifest, targz)
}

func runZip(inputPath, outputDir, pattern, manifest, targz string, opts []func(o *bulkconvert.ConvertOptions)) error {
	results, err := bulkconvert.ConvertZip(inputPath, outputDir, pattern, opts...)
	if errors.Is(err, bulkconvert.ErrNoMatches) {
		log.Printf("No DICOM files found matching %s in %s\n", pattern, inputPath)
		return nil
	} else if err != nil {
		return err
	}

	return finishBatch(results, manifest, targz)
}

func finishBatch(results []bulkconvert.ConversionResult, manifest, targz string) error {
	converted := 0
	for _, res := range results {
		if res.Err == nil {
			converted++
		}
	}
	log.Printf("Successfully converted %d/%d files\n", converted, len(results))

	if manifest != "" {
		if err := bulkconvert.WriteManifest(results, manifest); err != nil {
			return err
		}
		log.Printf("Wrote manifest to %s\n", manifest)
	}

	if targz != "" {
		if err := bundleOutputs(results, targz); err != nil {
			return err
		}
		log.Printf("Bundled %d PNGs into %s\n", converted, targz)
	}

	return nil
}
