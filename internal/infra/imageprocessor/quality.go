package imageprocessor

// EstimateSourceQuality buckets a source image into a JPEG-equivalent
// quality tier from its bytes-per-pixel density. A highly compressed source
// has no real detail left to preserve, so re-encoding it at a high quality
// setting only wastes bytes.
func EstimateSourceQuality(sourceBytes int64, width, height int) int {
	if width <= 0 || height <= 0 {
		return 60
	}
	bytesPerPixel := float64(sourceBytes) / float64(width*height)
	switch {
	case bytesPerPixel >= 2.0:
		return 95
	case bytesPerPixel >= 1.0:
		return 85
	case bytesPerPixel >= 0.5:
		return 75
	default:
		return 60
	}
}

// EffectiveQuality caps a requested encode quality at the source's
// estimated quality, unless the target box is no smaller than the source
// in both dimensions, in which case no detail is being discarded by the
// resize and 100 is returned so the original quality is kept.
func EffectiveQuality(requestedQuality, sourceWidth, sourceHeight, targetWidth, targetHeight int, sourceBytes int64) int {
	if sourceWidth <= targetWidth && sourceHeight <= targetHeight {
		return 100
	}
	estimated := EstimateSourceQuality(sourceBytes, sourceWidth, sourceHeight)
	if requestedQuality < estimated {
		return requestedQuality
	}
	return estimated
}
