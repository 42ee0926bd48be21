package bulkconvert

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
)

// PixelStats summarizes the raw intensity distribution of one dataset, which
// is useful for sanity-checking a batch without opening every PNG. Median is
// only filled when the summary is built from a complete sample array; Push
// alone cannot maintain it.
type PixelStats struct {
	runningvariance.RunningStat
	Min    float64
	Max    float64
	Median float64
}

func NewPixelStats() *PixelStats {
	return &PixelStats{
		RunningStat: *runningvariance.NewRunningStat(),
		Min:         math.MaxFloat64,
		Max:         -math.MaxFloat64,
	}
}

// Push folds one sample into the running summary.
func (s *PixelStats) Push(x float64) {
	s.RunningStat.Push(x)

	if x < s.Min {
		s.Min = x
	}
	if x > s.Max {
		s.Max = x
	}
}

func sampleStats(samples []int) *PixelStats {
	s := NewPixelStats()

	vals := make([]float64, len(samples))
	for i, v := range samples {
		vals[i] = float64(v)
		s.Push(vals[i])
	}

	if median, err := stats.Median(vals); err == nil {
		s.Median = median
	}

	return s
}

// ManifestRow is one line of the conversion manifest. Field names become the
// header row.
type ManifestRow struct {
	Dicom             string
	Png               string
	Error             string
	Rows              int
	Cols              int
	Mode              string
	SeriesDescription string
	SeriesNumber      string
	InstanceNumber    string
	StationName       string
	Date              string
	NPixels           int64
	MinIntensity      float64
	MaxIntensity      float64
	MedianIntensity   float64
	MeanIntensity     float64
	SDIntensity       float64
}

// WriteManifest writes one tab-delimited row per conversion attempt, failures
// included, so a batch can be audited after the fact.
func WriteManifest(results []ConversionResult, outPath string) error {
	rows := make([]*ManifestRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, manifestRow(res))
	}

	// Tell gocsv to use tab as the delimiter
	gocsv.SetCSVWriter(func(out io.Writer) *gocsv.SafeCSVWriter {
		w := csv.NewWriter(out)
		w.Comma = '\t'
		return gocsv.NewSafeCSVWriter(w)
	})

	f, err := os.Create(outPath)
	if err != nil {
		return pfx.Err(err)
	}

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return f.Close()
}

func manifestRow(res ConversionResult) *ManifestRow {
	row := &ManifestRow{
		Dicom: path.Base(res.Input),
		Png:   res.Output,
		Mode:  res.Mode,
	}

	if res.Err != nil {
		row.Error = res.Err.Error()
	}

	if res.Meta != nil {
		row.Rows = res.Meta.Rows
		row.Cols = res.Meta.Cols
		row.SeriesDescription = res.Meta.SeriesDescription
		row.SeriesNumber = res.Meta.SeriesNumber
		row.InstanceNumber = res.Meta.InstanceNumber
		row.StationName = res.Meta.StationName

		row.Date = res.Meta.Date
		if parsed, err := res.Meta.ParsedDate(); err == nil {
			row.Date = parsed.Format("2006-01-02")
		}
	}

	if res.Stats != nil && res.Stats.N > 0 {
		row.NPixels = int64(res.Stats.N)
		row.MinIntensity = res.Stats.Min
		row.MaxIntensity = res.Stats.Max
		row.MedianIntensity = res.Stats.Median
		row.MeanIntensity = res.Stats.Mean()
		row.SDIntensity = res.Stats.StandardDeviation()
	}

	return row
}
