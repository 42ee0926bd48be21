package bulkconvert

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"

	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
	"github.com/suyashkumar/dicom/frame"
)

// grayDataSet fabricates a parsed single-frame dataset with one sample per
// pixel, which is enough to exercise the tag resolution without real files.
func grayDataSet(rows, cols int, pixels [][]int, extra ...*element.Element) *element.DataSet {
	elems := []*element.Element{
		{Tag: dicomtag.Rows, Value: []interface{}{uint16(rows)}},
		{Tag: dicomtag.Columns, Value: []interface{}{uint16(cols)}},
		{Tag: dicomtag.SamplesPerPixel, Value: []interface{}{uint16(1)}},
		{Tag: dicomtag.PixelData, Value: []interface{}{element.PixelDataInfo{
			Frames: []frame.Frame{
				{NativeData: frame.NativeFrame{Data: pixels, Rows: rows, Cols: cols}},
			},
		}}},
	}
	elems = append(elems, extra...)

	return &element.DataSet{Elements: elems}
}

func TestDecodeResolvesWindowToFirstValue(t *testing.T) {
	ds := grayDataSet(1, 2, [][]int{{0}, {100}},
		&element.Element{Tag: dicomtag.WindowCenter, Value: []interface{}{"40", "400"}},
		&element.Element{Tag: dicomtag.WindowWidth, Value: []interface{}{"80", "1"}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	window := img.Window()
	if window == nil {
		t.Fatal("Expected a window")
	}
	if window.Center != 40 || window.Width != 80 {
		t.Fatalf("Window = %+v, expected center 40 width 80", window)
	}
}

func TestDecodeUnparseableWindowIsAbsent(t *testing.T) {
	ds := grayDataSet(1, 2, [][]int{{0}, {100}},
		&element.Element{Tag: dicomtag.WindowCenter, Value: []interface{}{"not-a-number"}},
		&element.Element{Tag: dicomtag.WindowWidth, Value: []interface{}{"80"}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if window := img.Window(); window != nil {
		t.Fatalf("Expected no window, got %+v", window)
	}
}

func TestDecodeSignExtension(t *testing.T) {
	ds := grayDataSet(2, 2, [][]int{{4095}, {2048}, {2047}, {0}},
		&element.Element{Tag: dicomtag.BitsStored, Value: []interface{}{uint16(12)}},
		&element.Element{Tag: dicomtag.PixelRepresentation, Value: []interface{}{uint16(1)}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if expected := []int{-1, -2048, 2047, 0}; !reflect.DeepEqual(img.Samples, expected) {
		t.Fatalf("Samples = %v, expected %v", img.Samples, expected)
	}
}

func TestDecodeUnsignedSamplesUntouched(t *testing.T) {
	ds := grayDataSet(2, 2, [][]int{{4095}, {2048}, {2047}, {0}},
		&element.Element{Tag: dicomtag.BitsStored, Value: []interface{}{uint16(12)}},
		&element.Element{Tag: dicomtag.PixelRepresentation, Value: []interface{}{uint16(0)}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if expected := []int{4095, 2048, 2047, 0}; !reflect.DeepEqual(img.Samples, expected) {
		t.Fatalf("Samples = %v, expected %v", img.Samples, expected)
	}
}

func TestDecodeMissingPixelData(t *testing.T) {
	ds := &element.DataSet{Elements: []*element.Element{
		{Tag: dicomtag.Rows, Value: []interface{}{uint16(2)}},
		{Tag: dicomtag.Columns, Value: []interface{}{uint16(2)}},
	}}

	if _, err := dicomImageFromDataSet(ds); !errors.Is(err, ErrNoPixelData) {
		t.Fatalf("Expected ErrNoPixelData, got %v", err)
	}
}

func TestDecodePhotometricTrimmed(t *testing.T) {
	ds := grayDataSet(1, 2, [][]int{{0}, {100}},
		&element.Element{Tag: dicomtag.PhotometricInterpretation, Value: []interface{}{"MONOCHROME1 "}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if img.Photometric != PhotometricMonochrome1 {
		t.Fatalf("Photometric = %q", img.Photometric)
	}
}

func TestDecodeRGBSamplesInterleaved(t *testing.T) {
	ds := &element.DataSet{Elements: []*element.Element{
		{Tag: dicomtag.Rows, Value: []interface{}{uint16(1)}},
		{Tag: dicomtag.Columns, Value: []interface{}{uint16(2)}},
		{Tag: dicomtag.SamplesPerPixel, Value: []interface{}{uint16(3)}},
		{Tag: dicomtag.PixelData, Value: []interface{}{element.PixelDataInfo{
			Frames: []frame.Frame{
				{NativeData: frame.NativeFrame{Data: [][]int{{255, 0, 0}, {0, 255, 0}}, Rows: 1, Cols: 2}},
			},
		}}},
	}}

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if img.Channels != 3 {
		t.Fatalf("Channels = %d, expected 3", img.Channels)
	}
	if expected := []int{255, 0, 0, 0, 255, 0}; !reflect.DeepEqual(img.Samples, expected) {
		t.Fatalf("Samples = %v, expected %v", img.Samples, expected)
	}
}

func TestDecodeOverlayBits(t *testing.T) {
	ds := grayDataSet(4, 4, [][]int{
		{0}, {0}, {0}, {0},
		{0}, {0}, {0}, {0},
		{0}, {0}, {0}, {0},
		{0}, {0}, {0}, {0},
	},
		&element.Element{Tag: dicomtag.Tag{Group: 0x6000, Element: 0x0010}, Value: []interface{}{uint16(4)}},
		&element.Element{Tag: dicomtag.Tag{Group: 0x6000, Element: 0x0011}, Value: []interface{}{uint16(4)}},
		&element.Element{Tag: dicomtag.Tag{Group: 0x6000, Element: 0x3000}, Value: []interface{}{[]byte{0x01, 0x80}}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	if img.OverlayRows != 4 || img.OverlayCols != 4 {
		t.Fatalf("Overlay bounds = %dx%d, expected 4x4", img.OverlayRows, img.OverlayCols)
	}
	if len(img.Overlay) != 16 {
		t.Fatalf("Overlay has %d cells, expected 16", len(img.Overlay))
	}

	// Bits unpack least significant first: byte 0 bit 0 is cell 0, byte 1
	// bit 7 is cell 15.
	if img.Overlay[0] != 1 || img.Overlay[15] != 1 {
		t.Fatalf("Overlay = %v", img.Overlay)
	}

	active := 0
	for _, v := range img.Overlay {
		active += v
	}
	if active != 2 {
		t.Fatalf("Expected 2 active cells, counted %d: %v", active, img.Overlay)
	}
}

func TestDecodeMeta(t *testing.T) {
	ds := grayDataSet(1, 2, [][]int{{0}, {100}},
		&element.Element{Tag: dicomtag.AcquisitionDate, Value: []interface{}{"20210408"}},
		&element.Element{Tag: dicomtag.SeriesDescription, Value: []interface{}{"CINE_segmented_LAX"}},
		&element.Element{Tag: dicomtag.SeriesNumber, Value: []interface{}{"21"}},
		&element.Element{Tag: dicomtag.InstanceNumber, Value: []interface{}{"3"}},
		&element.Element{Tag: dicomtag.StationName, Value: []interface{}{"AWP12345"}},
	)

	img, err := dicomImageFromDataSet(ds)
	if err != nil {
		t.Fatal(err)
	}

	expected := DicomMeta{
		Date:              "20210408",
		SeriesDescription: "CINE_segmented_LAX",
		SeriesNumber:      "21",
		InstanceNumber:    "3",
		StationName:       "AWP12345",
		Rows:              1,
		Cols:              2,
	}
	if img.Meta != expected {
		t.Fatalf("Meta = %+v, expected %+v", img.Meta, expected)
	}
}

func TestDecodeCorruptStream(t *testing.T) {
	junk := []byte("this is not a dicom file, not even close, but it is long enough to try")

	if _, err := DecodeDicomFromReader(bytes.NewReader(junk), int64(len(junk))); err == nil {
		t.Fatal("Expected an error for a corrupt stream")
	}
}

func TestSamplesFromImage(t *testing.T) {
	gray := image.NewGray16(image.Rect(0, 0, 2, 2))
	gray.SetGray16(0, 0, color.Gray16{Y: 0})
	gray.SetGray16(1, 0, color.Gray16{Y: 1000})
	gray.SetGray16(0, 1, color.Gray16{Y: 2000})
	gray.SetGray16(1, 1, color.Gray16{Y: 65535})

	samples, rows, cols, channels := samplesFromImage(gray)
	if rows != 2 || cols != 2 || channels != 1 {
		t.Fatalf("Got %dx%d with %d channels, expected 2x2x1", rows, cols, channels)
	}
	if expected := []int{0, 1000, 2000, 65535}; !reflect.DeepEqual(samples, expected) {
		t.Fatalf("Samples = %v, expected %v", samples, expected)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	rgba.SetRGBA(1, 0, color.RGBA{G: 128, A: 255})

	samples, rows, cols, channels = samplesFromImage(rgba)
	if rows != 1 || cols != 2 || channels != 3 {
		t.Fatalf("Got %dx%d with %d channels, expected 1x2x3", rows, cols, channels)
	}
	if expected := []int{255, 0, 0, 0, 128, 0}; !reflect.DeepEqual(samples, expected) {
		t.Fatalf("Samples = %v, expected %v", samples, expected)
	}
}
