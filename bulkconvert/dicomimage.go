package bulkconvert

import (
	"time"

	"github.com/araddon/dateparse"
)

// Photometric interpretations that change how samples are displayed.
// MONOCHROME1 means lower sample values render brighter, so those samples are
// inverted before any windowing is applied.
const (
	PhotometricMonochrome1 = "MONOCHROME1"
	PhotometricMonochrome2 = "MONOCHROME2"
)

// DicomImage is one decoded DICOM dataset reduced to what the converter
// needs: the raw sample grid plus the handful of tags that influence display.
type DicomImage struct {
	// Source names the file or object this dataset was decoded from.
	Source string

	// Samples holds every raw pixel sample in row-major order with channels
	// interleaved, so pixel p's channel c sits at p*Channels+c.
	Samples  []int
	Rows     int
	Cols     int
	Channels int

	Photometric  string
	WindowCenter *float64
	WindowWidth  *float64

	// Overlay holds the unpacked overlay plane from group 0x6000, one value
	// per cell with nonzero meaning active. Empty when the dataset has none.
	Overlay     []int
	OverlayRows int
	OverlayCols int

	Meta DicomMeta
}

// Window returns the dataset's VOI window, or nil when either parameter is
// absent so callers fall back to the full sample range.
func (d *DicomImage) Window() *Window {
	if d.WindowCenter == nil || d.WindowWidth == nil {
		return nil
	}

	return &Window{Center: *d.WindowCenter, Width: *d.WindowWidth}
}

// Invert flips the sample scale in place, v -> max-v, so MONOCHROME1 data
// can be windowed and rendered exactly like MONOCHROME2. It operates on the
// raw samples and must run before windowing.
func (d *DicomImage) Invert() {
	if len(d.Samples) == 0 {
		return
	}

	max := d.Samples[0]
	for _, v := range d.Samples[1:] {
		if v > max {
			max = v
		}
	}

	for i, v := range d.Samples {
		d.Samples[i] = max - v
	}
}

// DicomMeta holds the dataset metadata that lands in conversion manifests.
type DicomMeta struct {
	Date              string
	SeriesDescription string
	SeriesNumber      string
	InstanceNumber    string
	StationName       string
	Rows              int
	Cols              int
}

// ParsedDate normalizes the acquisition date, trying the common spellings
// found in DICOM date fields before giving up.
func (d DicomMeta) ParsedDate() (time.Time, error) {
	res, err := dateparse.ParseAny(d.Date)
	if err == nil {
		return res, nil
	}

	// Try a known spelling that dateparse fails to understand
	return time.Parse("02-Jan-2006 15:04:05", d.Date)
}
