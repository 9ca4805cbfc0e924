package dataloader

import (
	"fmt"

	"github.com/born-ml/cifarnet/internal/dataset"
	"github.com/born-ml/cifarnet/internal/tensor"
)

// Batch holds stacked samples. Images are NHWC, matching vision.Image.
type Batch struct {
	Images   []float32
	Labels   []int64
	Size     int
	Height   int
	Width    int
	Channels int
}

func collate(samples []dataset.Sample) (*Batch, error) {
	first := samples[0].Image
	b := &Batch{
		Size:     len(samples),
		Height:   first.Height,
		Width:    first.Width,
		Channels: first.Channels,
		Labels:   make([]int64, len(samples)),
	}
	per := first.Height * first.Width * first.Channels
	b.Images = make([]float32, 0, per*len(samples))
	for i, s := range samples {
		if s.Image.Shape() != first.Shape() {
			return nil, fmt.Errorf("%w: %v and %v", ErrMixedShapes, first.Shape(), s.Image.Shape())
		}
		b.Images = append(b.Images, s.Image.Pix...)
		b.Labels[i] = s.Label
	}
	return b, nil
}

// Tensors converts a batch to an NCHW image tensor and an int64 label
// tensor on the given backend.
func Tensors[B tensor.Backend](b *Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int64, B], error) {
	plane := b.Height * b.Width
	nchw := make([]float32, len(b.Images))
	for n := 0; n < b.Size; n++ {
		src := b.Images[n*plane*b.Channels : (n+1)*plane*b.Channels]
		dst := nchw[n*plane*b.Channels : (n+1)*plane*b.Channels]
		for p := 0; p < plane; p++ {
			for c := 0; c < b.Channels; c++ {
				dst[c*plane+p] = src[p*b.Channels+c]
			}
		}
	}

	images, err := tensor.FromSlice(nchw, tensor.Shape{b.Size, b.Channels, b.Height, b.Width}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch images: %w", err)
	}
	labels, err := tensor.FromSlice(append([]int64(nil), b.Labels...), tensor.Shape{b.Size}, backend)
	if err != nil {
		return nil, nil, fmt.Errorf("batch labels: %w", err)
	}
	return images, labels, nil
}
