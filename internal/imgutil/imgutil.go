// Package imgutil holds the shared raster helpers used by the
// segmentation backends. Everything operates on NRGBA so pixel access
// stays uniform across decoders.
package imgutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// ErrNoForeground indicates an alpha channel with no subject pixels.
var ErrNoForeground = errors.New("no foreground region detected")

// Decode reads an image in any registered format (PNG, JPEG, GIF).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	return img, format, nil
}

// ToNRGBA converts any image to NRGBA for uniform pixel access.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}

	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}

// HasUsefulAlpha reports whether the alpha channel carries real
// transparency, i.e. at least one pixel is not fully opaque.
func HasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// ResizeWithinMax scales the image down so its longest side is at most
// maxSize. Smaller images pass through untouched.
func ResizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	longest := max(w, h)

	if longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return ToNRGBA(resized)
}

// AlphaBBox computes the subject bounding box from the alpha channel.
// Pixels with alpha above threshold*255 count as subject.
func AlphaBBox(img *image.NRGBA, threshold float64) (image.Rectangle, error) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	th := uint8(threshold * 255)

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			a := img.Pix[row+x*4+3]
			if a > th {
				found = true
				if x < minX {
					minX = x
				}
				if y < minY {
					minY = y
				}
				if x > maxX {
					maxX = x
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if !found {
		return image.Rectangle{}, ErrNoForeground
	}

	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}

// ApplyMask multiplies the image alpha channel by the mask. The mask
// must have the same dimensions as the image.
func ApplyMask(src *image.NRGBA, mask *image.Gray) (*image.NRGBA, error) {
	if src.Bounds().Dx() != mask.Bounds().Dx() || src.Bounds().Dy() != mask.Bounds().Dy() {
		return nil, fmt.Errorf("mask size %v does not match image size %v", mask.Bounds().Size(), src.Bounds().Size())
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	sb, mb := src.Bounds(), mask.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := src.PixOffset(sb.Min.X+x, sb.Min.Y+y)
			mi := mask.PixOffset(mb.Min.X+x, mb.Min.Y+y)
			di := dst.PixOffset(x, y)

			dst.Pix[di] = src.Pix[si]
			dst.Pix[di+1] = src.Pix[si+1]
			dst.Pix[di+2] = src.Pix[si+2]

			a := uint16(src.Pix[si+3]) * uint16(mask.Pix[mi])
			dst.Pix[di+3] = uint8(a / 255)
		}
	}

	return dst, nil
}

// UpscaleGray resizes a grayscale mask to the target size with
// Catmull-Rom interpolation so mask edges stay smooth.
func UpscaleGray(mask *image.Gray, width, height int) *image.Gray {
	if mask.Bounds().Dx() == width && mask.Bounds().Dy() == height {
		return mask
	}

	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), mask, mask.Bounds(), xdraw.Src, nil)
	return dst
}

// EncodePNG renders the image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	return buf.Bytes(), nil
}
