// Package dataset adapts in-memory image arrays to indexed sample access.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/born-ml/cifarnet/internal/vision"
)

// Sentinel errors.
var (
	// ErrIndexOutOfRange is returned by Get for an index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("dataset index out of range")
	// ErrInvalidRecord reports a malformed record in a dataset file.
	ErrInvalidRecord = errors.New("invalid dataset record")
	// ErrMismatch reports image and label arrays that do not line up.
	ErrMismatch = errors.New("dataset arrays mismatch")
)

// Sample is one transformed image with its class label.
type Sample struct {
	Image *vision.Image
	Label int64
}

// Dataset provides indexed access to samples.
type Dataset interface {
	Len() int
	Get(i int) (Sample, error)
}

// Geometry describes the stored image layout (HWC).
type Geometry struct {
	Height   int
	Width    int
	Channels int
}

// Size returns the byte count of one stored image.
func (g Geometry) Size() int {
	return g.Height * g.Width * g.Channels
}

// ArrayDataset serves images from raw uint8 arrays, converting and
// transforming each on access. The backing arrays are never modified.
//
// Randomness for the transform comes from the dataset's own seeded source.
// Get is safe for concurrent use; calls are serialized on that source.
type ArrayDataset struct {
	images    [][]uint8
	labels    []int64
	geom      Geometry
	transform vision.Transform

	mu  sync.Mutex
	rng *rand.Rand
}

// NewArrayDataset validates the arrays and wraps them. A nil transform
// returns images unchanged.
func NewArrayDataset(images [][]uint8, labels []int64, geom Geometry, transform vision.Transform, seed uint64) (*ArrayDataset, error) {
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrMismatch, len(images), len(labels))
	}
	size := geom.Size()
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid geometry %+v", ErrMismatch, geom)
	}
	for i, img := range images {
		if len(img) != size {
			return nil, fmt.Errorf("%w: image %d has %d bytes, want %d", ErrMismatch, i, len(img), size)
		}
	}
	return &ArrayDataset{
		images:    images,
		labels:    labels,
		geom:      geom,
		transform: transform,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// FromSplit wraps a loaded Split.
func FromSplit(s Split, transform vision.Transform, seed uint64) (*ArrayDataset, error) {
	return NewArrayDataset(s.Images, s.Labels, s.Geometry, transform, seed)
}

// Len returns the number of samples.
func (d *ArrayDataset) Len() int {
	return len(d.images)
}

// Get returns sample i with the transform applied.
func (d *ArrayDataset) Get(i int) (Sample, error) {
	if i < 0 || i >= len(d.images) {
		return Sample{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(d.images))
	}
	img, err := vision.FromUint8(d.images[i], d.geom.Height, d.geom.Width, d.geom.Channels)
	if err != nil {
		return Sample{}, fmt.Errorf("sample %d: %w", i, err)
	}
	if d.transform != nil {
		d.mu.Lock()
		img = d.transform.Apply(img, d.rng)
		d.mu.Unlock()
	}
	return Sample{Image: img, Label: d.labels[i]}, nil
}

// Geometry returns the stored image geometry.
func (d *ArrayDataset) Geometry() Geometry {
	return d.geom
}
