package emd

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"

	"github.com/robert-malhotra/go-emd/dtype"
)

// decodeTIFF converts a TIFF image to 8-bit gray and stores it as the data
// group /data/tiff_data with axes x and y.
func (m *Model) decodeTIFF(r io.Reader) error {
	img, err := tiff.Decode(r)
	if err != nil {
		return newError(CodeFileOpenFailed, "tiff", "", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return newError(CodeInvalidDataFormat, "tiff", "", fmt.Errorf("empty image %dx%d", w, h))
	}
	if err := m.checkCapacity("tiff", uint64(w)*uint64(h)); err != nil {
		return err
	}

	ds, err := NewDataset(NewDataSpace(uint64(w), uint64(h)), dtype.FromSlice(grayPixels(img)))
	if err != nil {
		return newError(CodeInvalidDataFormat, "tiff", "", err)
	}
	axes := []axis{
		{name: "x", units: "[px]", length: uint64(w)},
		{name: "y", units: "[px]", length: uint64(h)},
	}
	if _, err := m.attachDataGroup("/data", "tiff_data", ds, axes, false); err != nil {
		return newError(CodeOf(err), "tiff", "", err)
	}
	return nil
}

// grayPixels returns the image's luminance with y varying fastest, the
// descending layout of an (x, y) dataset.
func grayPixels(img image.Image) []uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, 0, w*h)
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			out = append(out, color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return out
}
