package bulkconvert

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// RenderImage turns normalized 8-bit samples into a drawable image using the
// dataset's shape: one channel renders as grayscale, three as RGB.
func RenderImage(d *DicomImage, normalized []uint8) (draw.Image, error) {
	if want := d.Rows * d.Cols * d.Channels; len(normalized) != want {
		return nil, fmt.Errorf("Have %d normalized samples but a %dx%d image with %d channels needs %d", len(normalized), d.Rows, d.Cols, d.Channels, want)
	}

	switch d.Channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, d.Cols, d.Rows))
		for j, v := range normalized {
			// %cols and /cols -- the row count is not needed here
			img.SetGray(j%d.Cols, j/d.Cols, color.Gray{Y: v})
		}

		return img, nil

	case 3:
		img := image.NewRGBA(image.Rect(0, 0, d.Cols, d.Rows))
		for j := 0; j+2 < len(normalized); j += 3 {
			p := j / 3
			img.SetRGBA(p%d.Cols, p/d.Cols, color.RGBA{R: normalized[j], G: normalized[j+1], B: normalized[j+2], A: 255})
		}

		return img, nil
	}

	return nil, fmt.Errorf("Cannot render an image with %d samples per pixel", d.Channels)
}

// DrawOverlay paints the active overlay cells white on top of the rendered
// image. Out-of-bounds cells, which appear when the bit-packed plane was
// padded out to a full byte, are ignored.
func DrawOverlay(d *DicomImage, img draw.Image) {
	if len(d.Overlay) == 0 {
		return
	}

	cols := d.OverlayCols
	if cols == 0 {
		cols = d.Cols
	}
	if cols == 0 {
		return
	}

	for i, overlayValue := range d.Overlay {
		if overlayValue == 0 {
			continue
		}

		row := i / cols
		col := i % cols

		img.Set(col, row, color.White)
	}
}

// AddLabel writes text into the top-left corner of an image, using the
// context's built-in face so it works without any fonts installed.
func AddLabel(img image.Image, label string) image.Image {
	ctx := gg.NewContextForImage(img)
	ctx.SetRGB(1, 1, 1)
	ctx.DrawString(label, 2, 12)

	return ctx.Image()
}

// ResizeToWidth scales the image to the requested width, preserving the
// aspect ratio.
func ResizeToWidth(img image.Image, width int) image.Image {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// WritePNG persists the image at outPath through a buffered writer.
func WritePNG(img image.Image, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}

	fw := bufio.NewWriter(f)
	if err := png.Encode(fw, img); err != nil {
		f.Close()
		return err
	}

	if err := fw.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
