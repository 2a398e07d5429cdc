package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	// BackendProviderRembg runs an external segmentation engine process.
	BackendProviderRembg BackendProvider = "rembg"

	// BackendProviderChroma runs the in-process color segmenter.
	BackendProviderChroma BackendProvider = "chroma"
)

// Backend defines the core interface for all segmentation backends.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes inference and returns the complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// ModelPath is the path to the model artifact. Backends that need
	// no artifact ignore it.
	ModelPath string

	// Input is the raw input image (PNG, JPEG or GIF bytes).
	Input io.Reader

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is the cutout image as PNG bytes.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	Timestamp       time.Time       `json:"timestamp"`
	OutputBytes     int64           `json:"output_bytes"`
	BackendSpecific map[string]any  `json:"backend_specific"`
}
