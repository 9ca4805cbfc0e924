package vision

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// Transform maps an image to a new image. Implementations never modify the
// input and draw all randomness from rng, so a seeded rng reproduces a run.
type Transform interface {
	Apply(img *Image, rng *rand.Rand) *Image
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(img *Image, rng *rand.Rand) *Image

// Apply calls f.
func (f TransformFunc) Apply(img *Image, rng *rand.Rand) *Image {
	return f(img, rng)
}

// Compose applies transforms strictly in order.
type Compose []Transform

// Apply implements Transform.
func (c Compose) Apply(img *Image, rng *rand.Rand) *Image {
	for _, t := range c {
		img = t.Apply(img, rng)
	}
	return img
}

// RandomCrop cuts a Height x Width window at a uniformly random offset.
// Cropping an image smaller than the window is a configuration error and panics.
type RandomCrop struct {
	Height, Width int
}

// Apply implements Transform.
func (rc RandomCrop) Apply(img *Image, rng *rand.Rand) *Image {
	if img.Height < rc.Height || img.Width < rc.Width {
		panic(fmt.Sprintf("RandomCrop: image %dx%d smaller than crop %dx%d", img.Height, img.Width, rc.Height, rc.Width))
	}
	top := rng.IntN(img.Height - rc.Height + 1)
	left := rng.IntN(img.Width - rc.Width + 1)

	out := New(rc.Height, rc.Width, img.Channels)
	row := rc.Width * img.Channels
	for y := 0; y < rc.Height; y++ {
		src := img.Offset(top+y, left, 0)
		copy(out.Pix[y*row:(y+1)*row], img.Pix[src:src+row])
	}
	return out
}

// RandomFlipHorizontal mirrors the image left to right with probability P.
type RandomFlipHorizontal struct {
	P float64
}

// Apply implements Transform.
func (f RandomFlipHorizontal) Apply(img *Image, rng *rand.Rand) *Image {
	if rng.Float64() >= f.P {
		return img.Clone()
	}
	out := New(img.Height, img.Width, img.Channels)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			src := img.Offset(y, img.Width-1-x, 0)
			dst := out.Offset(y, x, 0)
			copy(out.Pix[dst:dst+img.Channels], img.Pix[src:src+img.Channels])
		}
	}
	return out
}

// RandomBrightness multiplies every value by a factor drawn uniformly from
// [Min, Max] and clips to [0, 255].
type RandomBrightness struct {
	Min, Max float64
}

// Apply implements Transform.
func (b RandomBrightness) Apply(img *Image, rng *rand.Rand) *Image {
	factor := float32(uniform(rng, b.Min, b.Max))
	out := img.Clone()
	for i, v := range out.Pix {
		out.Pix[i] = clip(v * factor)
	}
	return out
}

// RandomContrast blends every value with the image's grayscale mean:
// (x - mean)*f + mean, with f drawn uniformly from [Min, Max], clipped to
// [0, 255]. Single-channel images use their plain mean.
type RandomContrast struct {
	Min, Max float64
}

// Apply implements Transform.
func (c RandomContrast) Apply(img *Image, rng *rand.Rand) *Image {
	factor := float32(uniform(rng, c.Min, c.Max))
	mean := grayMean(img)
	out := img.Clone()
	for i, v := range out.Pix {
		out.Pix[i] = clip((v-mean)*factor + mean)
	}
	return out
}

// StandardizePerImage rescales an image to zero mean and unit variance:
// (x - mean) / max(std, 1/sqrt(N)). The lower bound keeps uniform images finite.
type StandardizePerImage struct{}

// Apply implements Transform.
func (StandardizePerImage) Apply(img *Image, _ *rand.Rand) *Image {
	values := make([]float64, len(img.Pix))
	for i, v := range img.Pix {
		values[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	std = math.Max(std, 1/math.Sqrt(float64(len(values))))

	out := New(img.Height, img.Width, img.Channels)
	for i, v := range values {
		out.Pix[i] = float32((v - mean) / std)
	}
	return out
}

// Resize scales the image to Height x Width with bilinear interpolation on
// half-pixel centres. It is deterministic and ignores rng.
type Resize struct {
	Height, Width int
}

// Apply implements Transform.
func (r Resize) Apply(img *Image, _ *rand.Rand) *Image {
	if img.Height == r.Height && img.Width == r.Width {
		return img.Clone()
	}
	out := New(r.Height, r.Width, img.Channels)
	sy := float64(img.Height) / float64(r.Height)
	sx := float64(img.Width) / float64(r.Width)

	for y := 0; y < r.Height; y++ {
		y0, y1, wy := sample(y, sy, img.Height)
		for x := 0; x < r.Width; x++ {
			x0, x1, wx := sample(x, sx, img.Width)
			for c := 0; c < img.Channels; c++ {
				top := img.At(y0, x0, c)*(1-wx) + img.At(y0, x1, c)*wx
				bottom := img.At(y1, x0, c)*(1-wx) + img.At(y1, x1, c)*wx
				out.Pix[out.Offset(y, x, c)] = top*(1-wy) + bottom*wy
			}
		}
	}
	return out
}

// sample maps destination index i back to the two neighbouring source
// indices and the weight of the second.
func sample(i int, scale float64, size int) (lo, hi int, w float32) {
	src := (float64(i)+0.5)*scale - 0.5
	src = math.Max(0, math.Min(src, float64(size-1)))
	lo = int(math.Floor(src))
	hi = min(lo+1, size-1)
	return lo, hi, float32(src - float64(lo))
}

func grayMean(img *Image) float32 {
	if img.Channels < 3 {
		return float32(stat.Mean(toFloat64(img.Pix), nil))
	}
	var sum float64
	for p := 0; p < img.Height*img.Width; p++ {
		px := img.Pix[p*img.Channels:]
		sum += 0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])
	}
	return float32(sum / float64(img.Height*img.Width))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clip(v float32) float32 {
	return min(max(v, 0), 255)
}
