package bulkconvert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
)

// ConvertZip converts every DICOM inside a zip archive whose base name
// matches the glob pattern, writing PNGs under outputDir (or into the working
// directory when outputDir is empty). The archive is consumed as a stream, so
// a gs:// zip is converted in one pass without being downloaded first.
// Results come back in archive order.
func ConvertZip(zipPath, outputDir, pattern string, opts ...func(o *ConvertOptions)) ([]ConversionResult, error) {
	options := newConvertOptions(opts...)

	f, _, err := MaybeOpenFromGoogleStorage(zipPath, options.StorageClient)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
			return nil, pfx.Err(err)
		}
	}

	out := make([]ConversionResult, 0)

	zr := zipstream.NewReader(f)
	for {
		hdr, err := zr.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return out, pfx.Err(err)
		}

		if strings.HasSuffix(hdr.Name, "/") {
			continue
		}
		ok, err := path.Match(pattern, path.Base(hdr.Name))
		if err != nil {
			return out, pfx.Err(err)
		}
		if !ok {
			continue
		}

		// The stream cannot seek, so each entry is buffered before parsing.
		res := func() ConversionResult {
			contents, err := io.ReadAll(zr)
			if err != nil {
				return ConversionResult{Input: hdr.Name, Err: pfx.Err(err)}
			}

			img, err := DecodeDicomFromReader(bytes.NewReader(contents), int64(len(contents)))
			if err != nil {
				return ConversionResult{Input: hdr.Name, Err: err}
			}
			img.Source = hdr.Name

			// Entry names may carry internal folders that do not exist on
			// disk, so only the base name contributes to the output path.
			return convertDecoded(img, OutputName(path.Base(hdr.Name), outputDir), options)
		}()

		if options.OnResult != nil {
			options.OnResult(res)
		}
		out = append(out, res)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoMatches, pattern, zipPath)
	}

	return out, nil
}
