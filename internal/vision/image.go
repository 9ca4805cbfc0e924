// Package vision holds the image type and the augmentation transforms applied
// to dataset samples before batching.
package vision

import (
	"errors"
	"fmt"
)

// ErrGeometry reports pixel data that does not match the declared geometry.
var ErrGeometry = errors.New("image geometry mismatch")

// Image is a dense float32 image in HWC order. Values start in the 0..255
// range of the source bytes; StandardizePerImage moves them to zero mean.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float32
}

// New allocates a zeroed image.
func New(height, width, channels int) *Image {
	if height <= 0 || width <= 0 || channels <= 0 {
		panic(fmt.Sprintf("vision: invalid image geometry %dx%dx%d", height, width, channels))
	}
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float32, height*width*channels),
	}
}

// FromUint8 converts HWC bytes into a new float image. The source slice is
// not retained.
func FromUint8(data []uint8, height, width, channels int) (*Image, error) {
	if height <= 0 || width <= 0 || channels <= 0 || len(data) != height*width*channels {
		return nil, fmt.Errorf("%w: %d bytes for %dx%dx%d", ErrGeometry, len(data), height, width, channels)
	}
	img := New(height, width, channels)
	for i, v := range data {
		img.Pix[i] = float32(v)
	}
	return img, nil
}

// Offset returns the Pix index of (y, x, c).
func (img *Image) Offset(y, x, c int) int {
	return (y*img.Width+x)*img.Channels + c
}

// At returns the value at (y, x, c).
func (img *Image) At(y, x, c int) float32 {
	return img.Pix[img.Offset(y, x, c)]
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{Height: img.Height, Width: img.Width, Channels: img.Channels}
	out.Pix = append([]float32(nil), img.Pix...)
	return out
}

// Shape returns [Height, Width, Channels].
func (img *Image) Shape() [3]int {
	return [3]int{img.Height, img.Width, img.Channels}
}

func (img *Image) String() string {
	return fmt.Sprintf("Image(%dx%dx%d)", img.Height, img.Width, img.Channels)
}
