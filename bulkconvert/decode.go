package bulkconvert

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// ErrNoPixelData reports a dataset that parsed cleanly but carries no image,
// e.g. a structured report or a presentation state.
var ErrNoPixelData = errors.New("dicom contains no pixel data")

// DecodeDicom reads one DICOM file and extracts its pixel grid and
// display-related tags. The path may be local or a gs:// object; a nil client
// is fine for local-only use.
func DecodeDicom(path string, client *storage.Client) (*DicomImage, error) {
	f, nBytes, err := MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	img, err := DecodeDicomFromReader(f, nBytes)
	if err != nil {
		return nil, err
	}
	img.Source = path

	return img, nil
}

// DecodeDicomFromReader operates on a reader that contains one DICOM.
func DecodeDicomFromReader(dicomReader io.Reader, nReaderBytes int64) (*DicomImage, error) {
	p, err := dicom.NewParser(dicomReader, nReaderBytes, nil)
	if err != nil {
		return nil, pfx.Err(err)
	}

	parsedData, err := safelyParse(p, dicom.ParseOptions{
		DropPixelData: false,
	})

	if parsedData == nil || err != nil {
		return nil, fmt.Errorf("Error parsing dicom: %v", err)
	}

	return dicomImageFromDataSet(parsedData)
}

// safelyParse consumes panics emitted by the dicom library on malformed
// input, which would otherwise take down every other file in a batch, and
// converts them into errors.
func safelyParse(p dicom.Parser, opts dicom.ParseOptions) (parsedData *element.DataSet, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("Recovered from panic during parsing: %v", panicErr)
		}
	}()

	return p.Parse(opts)
}

// dicomImageFromDataSet walks the parsed elements once and resolves each tag
// the converter cares about into a concrete scalar, so nothing downstream has
// to reason about multi-valued fields or DICOM's string-encoded numbers.
func dicomImageFromDataSet(parsedData *element.DataSet) (*DicomImage, error) {
	img := &DicomImage{Channels: 1}

	var bitsStored, pixelRepresentation uint16
	var sawPixelData, sawNative bool
	var encapsulated image.Image

	for _, elem := range parsedData.Elements {

		if elem.Tag == dicomtag.Rows {
			if v, ok := firstUint16(elem.Value); ok {
				img.Rows = int(v)
			}
		} else if elem.Tag == dicomtag.Columns {
			if v, ok := firstUint16(elem.Value); ok {
				img.Cols = int(v)
			}
		} else if elem.Tag == dicomtag.SamplesPerPixel {
			if v, ok := firstUint16(elem.Value); ok && v > 0 {
				img.Channels = int(v)
			}
		} else if elem.Tag == dicomtag.BitsStored {
			if v, ok := firstUint16(elem.Value); ok {
				bitsStored = v
			}
		} else if elem.Tag == dicomtag.PixelRepresentation {
			if v, ok := firstUint16(elem.Value); ok {
				pixelRepresentation = v
			}
		} else if elem.Tag == dicomtag.PhotometricInterpretation {
			if v, ok := firstString(elem.Value); ok {
				img.Photometric = strings.TrimSpace(v)
			}
		} else if elem.Tag == dicomtag.WindowCenter {
			if v, ok := firstFloat(elem.Value); ok {
				img.WindowCenter = &v
			}
		} else if elem.Tag == dicomtag.WindowWidth {
			if v, ok := firstFloat(elem.Value); ok {
				img.WindowWidth = &v
			}
		} else if elem.Tag.Compare(dicomtag.Tag{Group: 0x6000, Element: 0x0010}) == 0 {
			if v, ok := firstUint16(elem.Value); ok {
				img.OverlayRows = int(v)
			}
		} else if elem.Tag.Compare(dicomtag.Tag{Group: 0x6000, Element: 0x0011}) == 0 {
			if v, ok := firstUint16(elem.Value); ok {
				img.OverlayCols = int(v)
			}
		}

		// Manifest metadata
		if elem.Tag == dicomtag.Date || elem.Tag == dicomtag.DateTime || elem.Tag == dicomtag.AcquisitionDate {
			if v, ok := firstString(elem.Value); ok && len(v) > 0 {
				img.Meta.Date = v
			}
		} else if elem.Tag == dicomtag.SeriesDescription {
			if v, ok := firstString(elem.Value); ok {
				img.Meta.SeriesDescription = v
			}
		} else if elem.Tag == dicomtag.SeriesNumber {
			if v, ok := firstString(elem.Value); ok {
				img.Meta.SeriesNumber = v
			}
		} else if elem.Tag == dicomtag.InstanceNumber {
			if v, ok := firstString(elem.Value); ok {
				img.Meta.InstanceNumber = v
			}
		} else if elem.Tag == dicomtag.StationName {
			if v, ok := firstString(elem.Value); ok {
				img.Meta.StationName = v
			}
		}

		// Main image
		if elem.Tag == dicomtag.PixelData {
			sawPixelData = true

			if len(elem.Value) == 0 {
				continue
			}
			data, ok := elem.Value[0].(element.PixelDataInfo)
			if !ok {
				continue
			}

			for _, fr := range data.Frames {
				if fr.IsEncapsulated() {
					encImg, err := fr.GetImage()
					if err != nil {
						return nil, fmt.Errorf("Error decoding encapsulated frame: %v", err)
					}
					if encapsulated == nil {
						encapsulated = encImg
					}

					continue
				}

				sawNative = true
				for j := 0; j < len(fr.NativeData.Data); j++ {
					img.Samples = append(img.Samples, fr.NativeData.Data[j]...)
				}
				if img.Rows == 0 {
					img.Rows = fr.NativeData.Rows
				}
				if img.Cols == 0 {
					img.Cols = fr.NativeData.Cols
				}
			}
		}

		// Overlay plane
		if elem.Tag.Compare(dicomtag.Tag{Group: 0x6000, Element: 0x3000}) == 0 {
			for _, enclosed := range elem.Value {
				// One enclosure holding the bit-packed cells, LSB first.
				cellVals, ok := enclosed.([]byte)
				if !ok {
					continue
				}

				nBits := 8
				img.Overlay = make([]int, nBits*len(cellVals))
				for i := range cellVals {
					for j := 0; j < nBits; j++ {
						img.Overlay[i*nBits+j] = int((cellVals[i] >> uint(j)) & 1)
					}
				}
			}
		}
	}

	if !sawPixelData {
		return nil, ErrNoPixelData
	}

	// Encapsulated transfer syntaxes hand us an already-decoded image rather
	// than raw words; pull its samples out so the rest of the pipeline does
	// not care where the grid came from.
	if !sawNative && encapsulated != nil {
		img.Samples, img.Rows, img.Cols, img.Channels = samplesFromImage(encapsulated)
	}

	if len(img.Samples) == 0 {
		return nil, ErrNoPixelData
	}

	// Native samples arrive as raw unsigned words. PixelRepresentation 1
	// marks them as two's complement in BitsStored bits, so rebuild the sign
	// before any intensity math happens.
	if sawNative && pixelRepresentation == 1 && bitsStored > 0 && bitsStored < 63 {
		signBit := 1 << (bitsStored - 1)
		width := 1 << bitsStored
		for i, v := range img.Samples {
			if v >= signBit && v < width {
				img.Samples[i] = v - width
			}
		}
	}

	img.Meta.Rows = img.Rows
	img.Meta.Cols = img.Cols

	return img, nil
}

// samplesFromImage flattens a decoded image back into the interleaved sample
// layout used for native frames. Grayscale sources keep their full 16-bit
// range so windowing still has something to work with.
func samplesFromImage(src image.Image) (samples []int, rows, cols, channels int) {
	b := src.Bounds()
	rows, cols = b.Dy(), b.Dx()

	if src.ColorModel() == color.GrayModel || src.ColorModel() == color.Gray16Model {
		channels = 1
		samples = make([]int, 0, rows*cols)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(src.At(x, y)).(color.Gray16)
				samples = append(samples, int(g.Y))
			}
		}

		return
	}

	channels = 3
	samples = make([]int, 0, rows*cols*channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			samples = append(samples, int(r>>8), int(g>>8), int(bl>>8))
		}
	}

	return
}

func firstUint16(values []interface{}) (uint16, bool) {
	if len(values) == 0 {
		return 0, false
	}
	u, ok := values[0].(uint16)

	return u, ok
}

func firstString(values []interface{}) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	s, ok := values[0].(string)

	return s, ok
}

// firstFloat resolves DICOM's decimal-string fields, which may be
// multi-valued; only the first entry counts.
func firstFloat(values []interface{}) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	switch val := values[0].(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int:
		return float64(val), true
	}

	return 0, false
}
