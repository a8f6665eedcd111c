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
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// File name extensions of the formats which can be decoded
var readableExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff"}

// Returns true if the file name carries the extension of a decodable image format
func IsReadable(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range readableExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Reads an image from the given file, and calculates its statistics
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (*Image, error) {
	f := &Image{ID: id}
	if err := f.ReadFile(fileName, logWriter); err != nil {
		return nil, err
	}
	return f, nil
}

// Read image data from the file with the given name. The format is detected from the content
func (f *Image) ReadFile(fileName string, logWriter io.Writer) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	f.FileName = fileName
	return f.Read(bufio.NewReader(file), logWriter)
}

// Decodes image data from the reader
func (f *Image) Read(r io.Reader, logWriter io.Writer) error {
	img, format, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%d: cannot decode %s: %w", f.ID, f.FileName, err)
	}
	f.FromGoImage(img)
	if _, isPaletted := img.(*image.Paletted); isPaletted && logWriter != nil {
		fmt.Fprintf(logWriter, "%d: Warning: %s image %s is paletted, fusing its RGB expansion\n", f.ID, format, f.FileName)
	}
	return nil
}

// Returns width and height of the image in the given file, without decoding pixel data
func ReadConfig(fileName string) (width, height int, err error) {
	file, err := os.Open(fileName)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(file))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// Converts a golang image into planar float32 data. Gray images yield one channel,
// all others three (R, G, B). Alpha is dropped
func (f *Image) FromGoImage(img image.Image) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	bitpix, channels := colorModelToBitpixAndChannels(img.ColorModel())

	if channels == 1 {
		f.Naxisn = []int32{int32(width), int32(height)}
	} else {
		f.Naxisn = []int32{int32(width), int32(height), int32(channels)}
	}
	f.Pixels = int32(width * height * channels)
	f.Data = make([]float32, f.Pixels)
	f.MaxValue = 255
	shift := uint32(8)
	if bitpix == 16 {
		f.MaxValue, shift = 65535, 0
	}

	size := width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if channels == 1 {
				gray := color.Gray16Model.Convert(c).(color.Gray16)
				f.Data[y*width+x] = float32(uint32(gray.Y) >> shift)
			} else {
				r, g, b, _ := c.RGBA()
				f.Data[y*width+x] = float32(r >> shift)
				f.Data[y*width+x+size] = float32(g >> shift)
				f.Data[y*width+x+2*size] = float32(b >> shift)
			}
		}
	}
	f.UpdateStats()
}

// Maps a golang color model to bits per sample and number of channels.
// Unknown models such as YCbCr or paletted are treated as 8 bit RGB
func colorModelToBitpixAndChannels(m color.Model) (bitpix, channels int) {
	switch m {
	case color.RGBA64Model, color.NRGBA64Model:
		return 16, 3
	case color.GrayModel, color.AlphaModel:
		return 8, 1
	case color.Gray16Model, color.Alpha16Model:
		return 16, 1
	default:
		return 8, 3
	}
}
