// Package imaging stamps a provenance mark onto generated images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

var ErrEmptyImage = errors.New("empty image payload")

const (
	margin      = 8
	padding     = 4
	jpegQuality = 92
)

// Watermarker draws Text in the bottom-right corner of an image.
// PNG input stays PNG; every other decodable format is re-encoded as JPEG.
type Watermarker struct {
	Text string
}

func NewWatermarker(text string) *Watermarker {
	return &Watermarker{Text: text}
}

// Apply returns the marked image and its content type.
func (w *Watermarker) Apply(data []byte, contentType string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", contentType, err)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	w.stamp(dst)

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func (w *Watermarker) stamp(dst *image.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 220}),
		Face: face,
	}
	textWidth := d.MeasureString(w.Text).Ceil()
	metrics := face.Metrics()
	textHeight := (metrics.Ascent + metrics.Descent).Ceil()

	b := dst.Bounds()
	// Too small to hold the label; leave the image untouched.
	if textWidth+2*(margin+padding) > b.Dx() || textHeight+2*(margin+padding) > b.Dy() {
		return
	}

	x := b.Max.X - margin - padding - textWidth
	baseline := b.Max.Y - margin - padding - metrics.Descent.Ceil()
	box := image.Rect(x-padding, baseline-metrics.Ascent.Ceil()-padding, b.Max.X-margin, b.Max.Y-margin)
	draw.Draw(dst, box, image.NewUniform(color.NRGBA{A: 110}), image.Point{}, draw.Over)

	d.Dot = fixed.P(x, baseline)
	d.DrawString(w.Text)
}
