// Package imageprocessor decodes, resizes and re-encodes images for the
// thumbnail and cache-image pipelines.
package imageprocessor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/webp" // register WebP decoding
)

var (
	ErrInvalidFormat     = errors.New("invalid image format")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrCorruptedImage    = errors.New("corrupted image")
)

// Config holds the dimension bounds a source image must fall within to be
// considered processable.
type Config struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// DefaultConfig returns the bounds used when no environment override exists.
func DefaultConfig() Config {
	return Config{
		MinWidth:  1,
		MinHeight: 1,
		MaxWidth:  20000,
		MaxHeight: 20000,
	}
}

// LoadConfigFromEnv loads dimension bounds from PIPELINE_IMAGE_MIN_WIDTH,
// PIPELINE_IMAGE_MIN_HEIGHT, PIPELINE_IMAGE_MAX_WIDTH and
// PIPELINE_IMAGE_MAX_HEIGHT, falling back to DefaultConfig for any unset var.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PIPELINE_IMAGE_MIN_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PIPELINE_IMAGE_MIN_WIDTH: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("PIPELINE_IMAGE_MIN_WIDTH must be positive")
		}
		cfg.MinWidth = n
	}
	if v := os.Getenv("PIPELINE_IMAGE_MIN_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PIPELINE_IMAGE_MIN_HEIGHT: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("PIPELINE_IMAGE_MIN_HEIGHT must be positive")
		}
		cfg.MinHeight = n
	}
	if v := os.Getenv("PIPELINE_IMAGE_MAX_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PIPELINE_IMAGE_MAX_WIDTH: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("PIPELINE_IMAGE_MAX_WIDTH must be positive")
		}
		cfg.MaxWidth = n
	}
	if v := os.Getenv("PIPELINE_IMAGE_MAX_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PIPELINE_IMAGE_MAX_HEIGHT: %w", err)
		}
		if n <= 0 {
			return cfg, fmt.Errorf("PIPELINE_IMAGE_MAX_HEIGHT must be positive")
		}
		cfg.MaxHeight = n
	}

	return cfg, nil
}

// ImageProcessor decodes a source image, fits it within a target box and
// re-encodes it at the given quality. Width/height are treated as a bounding
// box (aspect ratio preserved), matching spec fit-within semantics.
type ImageProcessor interface {
	GenerateVariant(ctx context.Context, sourcePath, destPath string, targetWidth, targetHeight, quality int) error
	GenerateVariantToBuffer(ctx context.Context, sourcePath, destExt string, targetWidth, targetHeight, quality int) ([]byte, error)
	GetDimensions(ctx context.Context, path string) (width, height int, err error)
	Validate(ctx context.Context, path string) error
}

// Processor implements ImageProcessor using disintegration/imaging for
// decode/resize and kolesa-team/go-webp for WebP encoding.
type Processor struct {
	config Config
}

// NewProcessor constructs a Processor with the given dimension bounds.
func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// GenerateVariant resizes the source image to fit within targetWidth x
// targetHeight (preserving aspect ratio, never upscaling beyond the
// original) and writes it to destPath in the format implied by its
// extension, at the given quality.
func (p *Processor) GenerateVariant(ctx context.Context, sourcePath, destPath string, targetWidth, targetHeight, quality int) error {
	variant, err := p.fit(sourcePath, targetWidth, targetHeight)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return p.encodeToWriter(variant, f, filepath.Ext(destPath), quality)
}

// GenerateVariantToBuffer behaves like GenerateVariant but encodes into an
// in-memory buffer instead of writing to disk, so the batch generator can
// hold a collection's artifacts in memory until its per-collection commit
// (spec §4.4).
func (p *Processor) GenerateVariantToBuffer(ctx context.Context, sourcePath, destExt string, targetWidth, targetHeight, quality int) ([]byte, error) {
	variant, err := p.fit(sourcePath, targetWidth, targetHeight)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.encodeToWriter(variant, &buf, destExt, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Processor) fit(sourcePath string, targetWidth, targetHeight int) (image.Image, error) {
	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() > targetWidth || bounds.Dy() > targetHeight {
		return imaging.Fit(src, targetWidth, targetHeight, imaging.Lanczos), nil
	}
	return src, nil
}

func (p *Processor) encodeToWriter(img image.Image, w io.Writer, ext string, quality int) error {
	switch strings.ToLower(ext) {
	case ".png":
		level := png.CompressionLevel((100 - quality) * 9 / 100)
		if level > 9 {
			level = 9
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	case ".webp":
		return p.encodeWebP(img, w, float32(quality))
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

func (p *Processor) encodeWebP(img image.Image, w io.Writer, quality float32) error {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return fmt.Errorf("failed to create encoder options: %w", err)
	}
	if err := webp.Encode(w, img, options); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	return nil
}

// GetDimensions returns the width and height of an image without decoding
// pixel data.
func (p *Processor) GetDimensions(ctx context.Context, path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}

	return config.Width, config.Height, nil
}

// Validate checks that path is a readable, undamaged image in a supported
// format within the processor's configured dimension bounds.
func (p *Processor) Validate(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return ErrInvalidFormat
		}
		return fmt.Errorf("%w: %v", ErrCorruptedImage, err)
	}

	validFormats := map[string]bool{"jpeg": true, "jpg": true, "png": true, "webp": true}
	if !validFormats[strings.ToLower(format)] {
		return fmt.Errorf("%w: unsupported format %s", ErrInvalidFormat, format)
	}

	if config.Width < p.config.MinWidth || config.Height < p.config.MinHeight {
		return fmt.Errorf("%w: image too small (%dx%d), minimum is %dx%d",
			ErrInvalidDimensions, config.Width, config.Height, p.config.MinWidth, p.config.MinHeight)
	}
	if config.Width > p.config.MaxWidth || config.Height > p.config.MaxHeight {
		return fmt.Errorf("%w: image too large (%dx%d), maximum is %dx%d",
			ErrInvalidDimensions, config.Width, config.Height, p.config.MaxWidth, p.config.MaxHeight)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if _, err := imaging.Decode(file, imaging.AutoOrientation(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptedImage, err)
	}

	return nil
}
