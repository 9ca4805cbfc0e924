package dataset

import (
	"math/rand/v2"
)

// classPalette gives each of the ten classes a distinct base colour.
var classPalette = [10][3]float64{
	{220, 40, 40}, {40, 200, 60}, {50, 70, 230}, {230, 210, 40}, {200, 60, 210},
	{40, 210, 210}, {240, 140, 30}, {120, 120, 120}, {30, 30, 90}, {250, 250, 250},
}

// Synthetic generates n labeled RGB images of size h x w. Class k is
// k = i mod 10; its images share a base colour and a stripe orientation,
// with per-pixel noise. The output depends only on the arguments.
func Synthetic(n, h, w int, seed uint64) Split {
	rng := rand.New(rand.NewPCG(seed, seed+0x51f15e))
	s := Split{
		Images:   make([][]uint8, n),
		Labels:   make([]int64, n),
		Geometry: Geometry{Height: h, Width: w, Channels: 3},
	}
	for i := range n {
		class := i % len(classPalette)
		base := classPalette[class]
		img := make([]uint8, h*w*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				stripe := y
				if class%2 == 1 {
					stripe = x
				}
				shade := 0.6
				if (stripe/(1+class%4))%2 == 0 {
					shade = 1.0
				}
				for c := 0; c < 3; c++ {
					v := base[c]*shade + rng.NormFloat64()*12
					img[(y*w+x)*3+c] = uint8(min(max(v, 0), 255))
				}
			}
		}
		s.Images[i] = img
		s.Labels[i] = int64(class)
	}
	return s
}
