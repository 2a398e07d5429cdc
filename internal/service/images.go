package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/imgutil"
	"github.com/styl-labs/styld/internal/model"
	"github.com/styl-labs/styld/mapsafe"
)

// cropAlphaThreshold is the alpha cutoff for the subject bounding box.
// Zero keeps every pixel the feather touched.
const cropAlphaThreshold = 0.0

// Images is a service abstraction for image background removal.
type Images struct {
	backends *backend.Registry
	manager  *model.Manager
}

// NewImages creates a new images service.
func NewImages(backends *backend.Registry, manager *model.Manager) *Images {
	return &Images{
		backends: backends,
		manager:  manager,
	}
}

// RemoveBackground removes the background from the request image using
// the given model, or the first assigned model when modelID is empty.
// The model artifact is fetched on first use.
func (s *Images) RemoveBackground(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error) {
	registry := s.manager.Registry()
	if registry == nil {
		return nil, ErrNoModelAssigned
	}

	if modelID == "" {
		modelID = s.defaultModelID()
	}
	if modelID == "" {
		return nil, ErrNoModelAssigned
	}

	instance, ok := registry.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, modelID)
	}

	path, err := s.manager.Ensure(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("prepare model %s: %w", modelID, err)
	}

	provider := backend.BackendProvider(instance.Config.Backend)
	b, ok := s.backends.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, provider)
	}

	if locator, ok := b.(backend.ModelLocator); ok && path != "" {
		path, err = locator.ResolveModelPath(path)
		if err != nil {
			return nil, fmt.Errorf("resolve model %s: %w", modelID, err)
		}
	}

	breq := &backend.Request{
		ModelPath:  path,
		Input:      req.Input,
		Parameters: req.Parameters,
	}

	resp, err := b.Infer(ctx, breq)
	if err != nil {
		return nil, err
	}

	if mapsafe.Get(req.Parameters, "crop", false) {
		return cropToSubject(resp)
	}

	return resp, nil
}

// cropToSubject trims the cutout to the subject bounding box. Cutouts
// without transparency have nothing to crop against and pass through
// unchanged.
func cropToSubject(resp *backend.Response) (*backend.Response, error) {
	data, err := io.ReadAll(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("read cutout: %w", err)
	}

	img, _, err := imgutil.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cutout: %w", err)
	}

	nrgba := imgutil.ToNRGBA(img)
	if !imgutil.HasUsefulAlpha(nrgba) {
		resp.Output = bytes.NewReader(data)
		return resp, nil
	}

	bbox, err := imgutil.AlphaBBox(nrgba, cropAlphaThreshold)
	if err != nil {
		if errors.Is(err, imgutil.ErrNoForeground) {
			resp.Output = bytes.NewReader(data)
			return resp, nil
		}
		return nil, fmt.Errorf("crop cutout: %w", err)
	}

	cropped, err := imgutil.EncodePNG(nrgba.SubImage(bbox))
	if err != nil {
		return nil, err
	}

	resp.Output = bytes.NewReader(cropped)
	if resp.Metadata != nil {
		resp.Metadata.OutputBytes = int64(len(cropped))
	}

	return resp, nil
}

// defaultModelID returns the first model assigned to the images
// service, or empty when none is assigned.
func (s *Images) defaultModelID() string {
	registry := s.manager.Registry()
	if registry == nil {
		return ""
	}

	cfg := registry.Config()
	if cfg == nil || len(cfg.Services.Images.Models) == 0 {
		return ""
	}

	return cfg.Services.Images.Models[0]
}
