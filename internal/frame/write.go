// Copyright (C) 2026 The pyramid-scheme authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package frame

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
)

// Writes the image to the given file. The format is selected by suffix:
// .jpg/.jpeg as 8 bit JPEG with given quality, .png as 8 or 16 bit PNG matching the source depth,
// and .tif/.tiff as 16 bit deflate-compressed TIFF
func (f *Image) WriteFile(fileName string, quality int) error {
	var encode func(io.Writer) error
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		encode = func(w io.Writer) error { return f.WriteJPG(w, quality) }
	case ".png":
		encode = f.WritePNG
	case ".tif", ".tiff":
		encode = f.WriteTIFF16
	default:
		return fmt.Errorf("%d: unknown suffix for output file %s", f.ID, fileName)
	}

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := encode(writer); err != nil {
		return err
	}
	return writer.Flush()
}

// Write the image as 8 bit JPEG with the given quality
func (f *Image) WriteJPG(writer io.Writer, quality int) error {
	img, err := f.ToGoImage(8)
	if err != nil {
		return err
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}

// Write the image as PNG, with 16 bits per sample if the source had more than 8
func (f *Image) WritePNG(writer io.Writer) error {
	bits := 8
	if f.MaxValue > 255 {
		bits = 16
	}
	img, err := f.ToGoImage(bits)
	if err != nil {
		return err
	}
	return png.Encode(writer, img)
}

// Write the image as 16 bit TIFF
func (f *Image) WriteTIFF16(writer io.Writer) error {
	img, err := f.ToGoImage(16)
	if err != nil {
		return err
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Converts the image into a golang image with 8 or 16 bits per sample. Values are clamped
// to [0, MaxValue] and rounded. Only one and three channel images can be converted
func (f *Image) ToGoImage(bits int) (image.Image, error) {
	width, height := f.Width(), f.Height()
	size := width * height
	rect := image.Rect(0, 0, width, height)
	full := float32(255)
	if bits == 16 {
		full = 65535
	}
	maxValue := f.MaxValue
	if maxValue <= 0 {
		maxValue = 255
	}
	scale := full / maxValue
	conv := func(v float32) float32 {
		// replace NaNs with zeros for export, else output breaks
		if math.IsNaN(float64(v)) || v < 0 {
			return 0
		}
		if v > maxValue {
			v = maxValue
		}
		return float32(math.Floor(float64(v*scale) + 0.5))
	}

	switch {
	case f.Channels() == 1 && bits == 8:
		img := image.NewGray(rect)
		for i, v := range f.Data[:size] {
			img.Pix[i] = uint8(conv(v))
		}
		return img, nil
	case f.Channels() == 1 && bits == 16:
		img := image.NewGray16(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, color.Gray16{uint16(conv(f.Data[y*width+x]))})
			}
		}
		return img, nil
	case f.Channels() == 3 && bits == 8:
		img := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				img.SetRGBA(x, y, color.RGBA{uint8(conv(f.Data[i])), uint8(conv(f.Data[i+size])), uint8(conv(f.Data[i+2*size])), 255})
			}
		}
		return img, nil
	case f.Channels() == 3 && bits == 16:
		img := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				img.SetRGBA64(x, y, color.RGBA64{uint16(conv(f.Data[i])), uint16(conv(f.Data[i+size])), uint16(conv(f.Data[i+2*size])), 65535})
			}
		}
		return img, nil
	}
	return nil, errors.New(fmt.Sprintf("%d: unable to write %s pixel image with %d bits", f.ID, f.DimensionsToString(), bits))
}
