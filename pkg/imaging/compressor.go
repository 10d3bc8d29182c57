// Package imaging shrinks photo attachments before upload.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
)

// Options bounds the compressed output. Qualities are JPEG quality values
// in the 1-100 range.
type Options struct {
	MaxDimension int
	MaxBytes     int
	StartQuality int
	QualityStep  int
	MinQuality   int
}

// DefaultOptions fits into 800x800 and aims for 500 KiB, starting at
// quality 30 and stepping down by 5 to a floor of 5.
func DefaultOptions() Options {
	return Options{
		MaxDimension: 800,
		MaxBytes:     500 * 1024,
		StartQuality: 30,
		QualityStep:  5,
		MinQuality:   5,
	}
}

// Result is one compressed attachment.
type Result struct {
	Data    []byte
	Quality int
	Bounds  image.Rectangle
}

// Compressor resizes and re-encodes images as JPEG.
type Compressor struct {
	opts Options
}

// NewCompressor fills unset options from DefaultOptions.
func NewCompressor(opts Options) *Compressor {
	def := DefaultOptions()
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.StartQuality <= 0 || opts.StartQuality > 100 {
		opts.StartQuality = def.StartQuality
	}
	if opts.QualityStep <= 0 {
		opts.QualityStep = def.QualityStep
	}
	if opts.MinQuality <= 0 || opts.MinQuality > opts.StartQuality {
		opts.MinQuality = def.MinQuality
	}
	if opts.MinQuality > opts.StartQuality {
		opts.MinQuality = opts.StartQuality
	}
	return &Compressor{opts: opts}
}

// Options returns the effective options.
func (c *Compressor) Options() Options {
	return c.opts
}

// Compress fits img into the configured square and lowers JPEG quality
// until the output fits MaxBytes or MinQuality is reached.
func (c *Compressor) Compress(img image.Image) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("imaging: nil image")
	}
	scaled := Fit(img, c.opts.MaxDimension)

	var buf bytes.Buffer
	quality := c.opts.StartQuality
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
		}
		if buf.Len() <= c.opts.MaxBytes || quality <= c.opts.MinQuality {
			break
		}
		quality -= c.opts.QualityStep
		if quality < c.opts.MinQuality {
			quality = c.opts.MinQuality
		}
	}

	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return &Result{Data: data, Quality: quality, Bounds: scaled.Bounds()}, nil
}

// Fit scales img down to fit a maxDim square, keeping the aspect ratio.
// Images that already fit are returned unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim || w == 0 || h == 0 {
		return img
	}

	scale := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := int(math.Max(1, math.Round(float64(w)*scale)))
	nh := int(math.Max(1, math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Decode reads a JPEG or PNG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}

// Load decodes the image stored at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imaging: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}
