package bulkconvert

import (
	"image"
	"path"
	"path/filepath"
	"strings"
)

// ConversionResult reports the outcome of one conversion attempt. Err is nil
// on success, in which case Output names the PNG that was written. Meta and
// Stats are populated whenever the source could at least be decoded.
type ConversionResult struct {
	Input  string
	Output string
	Mode   string
	Err    error
	Meta   *DicomMeta
	Stats  *PixelStats
}

// OutputName derives the PNG path for a source DICOM: the base name with its
// extension swapped for .png, placed under outputDir when one is given and
// alongside the source otherwise.
func OutputName(dicomPath, outputDir string) string {
	base := path.Base(strings.ReplaceAll(dicomPath, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base)) + ".png"

	if outputDir != "" {
		return filepath.Join(outputDir, base)
	}

	if strings.HasPrefix(dicomPath, "gs://") {
		// Remote sources have no local folder to sit alongside.
		return base
	}

	return filepath.Join(filepath.Dir(dicomPath), base)
}

// ConvertOne decodes a single DICOM file and writes its PNG rendition to
// outPath, or to OutputName(dicomPath, "") when outPath is empty. Failures
// are captured in the result rather than returned, so callers can aggregate
// attempts without aborting.
func ConvertOne(dicomPath, outPath string, opts ...func(o *ConvertOptions)) ConversionResult {
	options := newConvertOptions(opts...)

	if outPath == "" {
		outPath = OutputName(dicomPath, "")
	}

	res := convert(dicomPath, outPath, options)
	if options.OnResult != nil {
		options.OnResult(res)
	}

	return res
}

// ConvertDecoded runs the conversion pipeline on an already-decoded dataset.
// Useful when the caller has decoded the DICOM itself, e.g. out of a zip.
func ConvertDecoded(img *DicomImage, outPath string, opts ...func(o *ConvertOptions)) ConversionResult {
	options := newConvertOptions(opts...)

	res := convertDecoded(img, outPath, options)
	if options.OnResult != nil {
		options.OnResult(res)
	}

	return res
}

func convert(dicomPath, outPath string, options ConvertOptions) ConversionResult {
	img, err := DecodeDicom(dicomPath, options.StorageClient)
	if err != nil {
		return ConversionResult{Input: dicomPath, Err: err}
	}

	return convertDecoded(img, outPath, options)
}

func convertDecoded(img *DicomImage, outPath string, options ConvertOptions) ConversionResult {
	res := ConversionResult{Input: img.Source, Meta: &img.Meta}

	// MONOCHROME1 stores its brightest tissue at the lowest sample values.
	// Inversion operates on the raw samples, before any windowing.
	if img.Photometric == PhotometricMonochrome1 {
		img.Invert()
	}

	res.Stats = sampleStats(img.Samples)

	var window *Window
	if options.ApplyWindowing {
		window = img.Window()
	}

	normalized := NormalizePixels(img.Samples, window)

	rendered, err := RenderImage(img, normalized)
	if err != nil {
		res.Err = err
		return res
	}

	res.Mode = "gray"
	if img.Channels == 3 {
		res.Mode = "rgb"
	}

	if options.IncludeOverlay {
		DrawOverlay(img, rendered)
	}

	var final image.Image = rendered
	if options.ResizeWidth > 0 {
		final = ResizeToWidth(final, options.ResizeWidth)
	}
	if options.Label {
		final = AddLabel(final, strings.TrimSuffix(path.Base(img.Source), path.Ext(img.Source)))
	}

	if err := WritePNG(final, outPath); err != nil {
		res.Err = err
		return res
	}

	res.Output = outPath

	return res
}
