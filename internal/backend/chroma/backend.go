// Package chroma removes near-uniform backgrounds without a model
// artifact by clustering dominant colors and keying the background out.
package chroma

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/config"
	"github.com/styl-labs/styld/internal/imgutil"
	"github.com/styl-labs/styld/mapsafe"
)

const (
	defaultColors    = 4
	defaultThreshold = 0.18
	defaultFeather   = 2.0

	// analysisMaxSize caps the clustering resolution. The mask is
	// upscaled back to the input size afterwards.
	analysisMaxSize = 320

	// maxObservations caps the k-means sample count.
	maxObservations = 8192
)

// Options holds the segmentation parameters for a single request.
type Options struct {
	Colors        int
	Threshold     float64
	FeatherRadius float64
}

// Backend implements backend.Backend with an in-process color-key
// segmenter. It needs no model artifact and no external binary.
type Backend struct {
	defaults Options
}

// NewBackend creates a new chroma backend.
func NewBackend(cfg config.ChromaConfig) *Backend {
	opts := Options{
		Colors:        cfg.Colors,
		Threshold:     cfg.Threshold,
		FeatherRadius: cfg.FeatherRadius,
	}
	if opts.Colors < 2 {
		opts.Colors = defaultColors
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.FeatherRadius <= 0 {
		opts.FeatherRadius = defaultFeather
	}

	return &Backend{defaults: opts}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderChroma
}

// Infer segments the subject and returns it as a PNG with a
// transparent background.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	opts := b.options(req.Parameters)

	decoded, _, err := imgutil.Decode(req.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnsupportedImage, err)
	}
	src := imgutil.ToNRGBA(decoded)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis := imgutil.ResizeWithinMax(src, analysisMaxSize)

	centers, err := clusterCenters(analysis, opts.Colors)
	if err != nil {
		return nil, fmt.Errorf("cluster colors: %w", err)
	}

	bg := backgroundCenters(analysis, centers, opts.Threshold)

	mask, foreground := buildMask(analysis, bg, opts.Threshold)
	if foreground == 0 {
		return nil, backend.ErrNoForeground
	}
	mask = largestComponent(mask)

	mask = imgutil.UpscaleGray(mask, src.Bounds().Dx(), src.Bounds().Dy())
	if opts.FeatherRadius > 0 {
		mask = grayFrom(imaging.Blur(mask, opts.FeatherRadius))
	}

	cutout, err := imgutil.ApplyMask(src, mask)
	if err != nil {
		return nil, fmt.Errorf("apply mask: %w", err)
	}

	data, err := imgutil.EncodePNG(cutout)
	if err != nil {
		return nil, err
	}

	ab := analysis.Bounds()
	return &backend.Response{
		Output: bytes.NewReader(data),
		Metadata: &backend.ResponseMetadata{
			Provider:    b.Provider(),
			Model:       req.ModelPath,
			Timestamp:   time.Now(),
			OutputBytes: int64(len(data)),
			BackendSpecific: map[string]any{
				"colors":        opts.Colors,
				"threshold":     opts.Threshold,
				"feather":       opts.FeatherRadius,
				"analysis_size": fmt.Sprintf("%dx%d", ab.Dx(), ab.Dy()),
				"foreground_px": foreground,
			},
		},
	}, nil
}

// Close cleans up resources. Chroma does not have any resources to clean up.
func (b *Backend) Close() error {
	return nil
}

// options merges per-request parameters over the configured defaults.
func (b *Backend) options(p map[string]any) Options {
	opts := b.defaults
	if p == nil {
		return opts
	}

	opts.Colors = mapsafe.Get(p, "colors", opts.Colors)
	opts.Threshold = mapsafe.Get(p, "threshold", opts.Threshold)
	opts.FeatherRadius = mapsafe.Get(p, "feather_radius", opts.FeatherRadius)

	return opts
}

// labPoint is a pixel in CIE Lab space, used as a k-means observation.
type labPoint struct {
	l, a, b float64
}

// Coordinates returns the point as cluster coordinates.
func (p labPoint) Coordinates() clusters.Coordinates {
	return clusters.Coordinates{p.l, p.a, p.b}
}

// Distance returns the squared Lab distance to a cluster center.
func (p labPoint) Distance(point clusters.Coordinates) float64 {
	dl := p.l - point[0]
	da := p.a - point[1]
	db := p.b - point[2]
	return dl*dl + da*da + db*db
}

// clusterCenters partitions a sample of the image pixels into k
// dominant colors.
func clusterCenters(img *image.NRGBA, k int) ([]colorful.Color, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	step := 1
	if total := w * h; total > maxObservations {
		step = total / maxObservations
	}

	var obs clusters.Observations
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if idx%step == 0 {
				l, a, b := pixelColor(img, bounds.Min.X+x, bounds.Min.Y+y).Lab()
				obs = append(obs, labPoint{l, a, b})
			}
			idx++
		}
	}

	if len(obs) < k {
		k = len(obs)
	}
	if k < 2 {
		return nil, fmt.Errorf("image too small to cluster")
	}

	km := kmeans.New()
	partitions, err := km.Partition(obs, k)
	if err != nil {
		return nil, err
	}

	centers := make([]colorful.Color, len(partitions))
	for i, c := range partitions {
		centers[i] = colorful.Lab(c.Center[0], c.Center[1], c.Center[2])
	}

	return centers, nil
}

// backgroundCenters picks the background colors by majority vote over
// the border pixels. Centers perceptually close to the winner count as
// background too, so gradient backdrops key out as one surface.
func backgroundCenters(img *image.NRGBA, centers []colorful.Color, threshold float64) []colorful.Color {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	votes := make([]int, len(centers))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x != 0 && y != 0 && x != w-1 && y != h-1 {
				continue
			}
			c := pixelColor(img, bounds.Min.X+x, bounds.Min.Y+y)
			votes[nearestCenter(centers, c)]++
		}
	}

	top := 0
	for i, v := range votes {
		if v > votes[top] {
			top = i
		}
	}

	bg := []colorful.Color{centers[top]}
	for i, center := range centers {
		if i == top {
			continue
		}
		if center.DistanceLab(centers[top]) < 2*threshold {
			bg = append(bg, center)
		}
	}

	return bg
}

// buildMask marks every pixel farther than threshold from all
// background colors as foreground. Returns the mask and the number of
// foreground pixels.
func buildMask(img *image.NRGBA, bg []colorful.Color, threshold float64) (*image.Gray, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mask := image.NewGray(image.Rect(0, 0, w, h))
	foreground := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := pixelColor(img, bounds.Min.X+x, bounds.Min.Y+y)

			dist := math.MaxFloat64
			for _, center := range bg {
				if d := c.DistanceLab(center); d < dist {
					dist = d
				}
			}

			if dist > threshold {
				mask.Pix[y*mask.Stride+x] = 255
				foreground++
			}
		}
	}

	return mask, foreground
}

// largestComponent keeps only the biggest 4-connected foreground
// region, dropping speckles picked up by the color key.
func largestComponent(mask *image.Gray) *image.Gray {
	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()

	visited := make([]bool, w*h)
	var best []int
	stack := make([]int, 0, 64)

	for i := 0; i < w*h; i++ {
		if visited[i] || mask.Pix[(i/w)*mask.Stride+i%w] == 0 {
			continue
		}

		var comp []int
		stack = append(stack[:0], i)
		visited[i] = true
		for len(stack) > 0 {
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, j)

			jx, jy := j%w, j/w
			for _, n := range [4][2]int{{jx - 1, jy}, {jx + 1, jy}, {jx, jy - 1}, {jx, jy + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				k := ny*w + nx
				if visited[k] || mask.Pix[ny*mask.Stride+nx] == 0 {
					continue
				}
				visited[k] = true
				stack = append(stack, k)
			}
		}

		if len(comp) > len(best) {
			best = comp
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for _, j := range best {
		out.Pix[(j/w)*out.Stride+j%w] = 255
	}

	return out
}

// nearestCenter returns the index of the perceptually closest center.
func nearestCenter(centers []colorful.Color, c colorful.Color) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, center := range centers {
		if d := c.DistanceLab(center); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// pixelColor reads a pixel as a colorful.Color, ignoring alpha.
func pixelColor(img *image.NRGBA, x, y int) colorful.Color {
	i := img.PixOffset(x, y)
	return colorful.Color{
		R: float64(img.Pix[i]) / 255.0,
		G: float64(img.Pix[i+1]) / 255.0,
		B: float64(img.Pix[i+2]) / 255.0,
	}
}

// grayFrom extracts the gray channel after a blur pass.
func grayFrom(img *image.NRGBA) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for i := range out.Pix {
		out.Pix[i] = img.Pix[i*4]
	}
	return out
}
