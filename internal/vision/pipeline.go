package vision

// AugmentConfig parameterizes the training and evaluation pipelines.
type AugmentConfig struct {
	CropSize   int
	FlipProb   float64
	Brightness [2]float64
	Contrast   [2]float64
}

// DefaultAugment returns the standard CIFAR-10 settings: 24x24 crops, even
// flip odds and brightness/contrast factors in [0.5, 1.5].
func DefaultAugment() AugmentConfig {
	return AugmentConfig{
		CropSize:   24,
		FlipProb:   0.5,
		Brightness: [2]float64{0.5, 1.5},
		Contrast:   [2]float64{0.5, 1.5},
	}
}

// TrainTransforms returns the randomized training pipeline: crop, flip,
// brightness, contrast, then per-image standardization.
func TrainTransforms(cfg AugmentConfig) Compose {
	return Compose{
		RandomCrop{Height: cfg.CropSize, Width: cfg.CropSize},
		RandomFlipHorizontal{P: cfg.FlipProb},
		RandomBrightness{Min: cfg.Brightness[0], Max: cfg.Brightness[1]},
		RandomContrast{Min: cfg.Contrast[0], Max: cfg.Contrast[1]},
		StandardizePerImage{},
	}
}

// EvalTransforms returns the deterministic evaluation pipeline: resize to
// the crop size, then per-image standardization.
func EvalTransforms(cfg AugmentConfig) Compose {
	return Compose{
		Resize{Height: cfg.CropSize, Width: cfg.CropSize},
		StandardizePerImage{},
	}
}
