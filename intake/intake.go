// Package intake normalizes user-supplied photos before they enter the
// composition state: decode, bound the size, re-encode as JPEG.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/vyapaarpost/editor"
)

const (
	// MaxDimension bounds both sides of a normalized image.
	MaxDimension = 400
	// MaxUploadBytes is the largest upload accepted.
	MaxUploadBytes = 10 << 20
	// JPEGQuality is used when re-encoding.
	JPEGQuality = 90
)

var (
	// ErrDecodeFailed means the upload is not a readable image. The caller's
	// state must be left untouched.
	ErrDecodeFailed = errors.New("image decode failed")
	// ErrTooLarge means the upload exceeded MaxUploadBytes.
	ErrTooLarge = errors.New("image upload too large")
)

// Normalize decodes r, scales it so neither side exceeds maxDim (never
// upscaling) and re-encodes it as JPEG. maxDim <= 0 uses MaxDimension.
func Normalize(r io.Reader, maxDim int) (*editor.UserImage, error) {
	if maxDim <= 0 {
		maxDim = MaxDimension
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", ErrDecodeFailed, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecodeFailed, format)
	}

	w, h := FitWithin(b.Dx(), b.Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; flatten onto white the way a browser canvas export does.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return &editor.UserImage{Data: buf.Bytes(), Width: w, Height: h, Format: "jpeg"}, nil
}

// FitWithin returns w×h scaled proportionally so that max(w,h) <= maxDim.
// Images already within bounds keep their size.
func FitWithin(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(maxDim) / float64(w)))
		return maxDim, max(nh, 1)
	}
	nw := int(math.Round(float64(w) * float64(maxDim) / float64(h)))
	return max(nw, 1), maxDim
}
