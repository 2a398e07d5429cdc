package model

import (
	"sync"
	"time"

	"github.com/styl-labs/styld/internal/config"
)

// ModelType is the type of a model, matching the config schema enum.
type ModelType string

const (
	// ModelTypeSegmentation is the type of an image segmentation model.
	ModelTypeSegmentation ModelType = "segmentation"

	// ModelTypeVision is the type of a general vision model.
	ModelTypeVision ModelType = "vision"
)

// ModelStatus is the current artifact status of a model.
type ModelStatus string

const (
	// ModelStatusUnloaded indicates that the artifact has not been fetched yet.
	ModelStatusUnloaded ModelStatus = "unloaded"

	// ModelStatusDownloading indicates that the artifact is being fetched.
	ModelStatusDownloading ModelStatus = "downloading"

	// ModelStatusReady indicates that the artifact is available on disk.
	ModelStatusReady ModelStatus = "ready"

	// ModelStatusFailed indicates that the artifact could not be fetched.
	ModelStatusFailed ModelStatus = "failed"
)

// ModelInstance represents a registered model and its artifact state.
// Artifacts are fetched lazily, so state transitions happen on the
// request path and must be safe for concurrent readers.
type ModelInstance struct {
	ID     string
	Config *config.ModelConfig

	mu        sync.RWMutex
	path      string
	status    ModelStatus
	err       string
	fetchedAt *time.Time
}

// InstanceSnapshot is a point-in-time view of a model instance.
type InstanceSnapshot struct {
	ID        string      `json:"id"`
	Type      ModelType   `json:"type"`
	Backend   string      `json:"backend"`
	Status    ModelStatus `json:"status"`
	Path      string      `json:"path,omitempty"`
	Error     string      `json:"error,omitempty"`
	FetchedAt *time.Time  `json:"fetched_at,omitempty"`
}

// NewModelInstance creates a new model instance in the unloaded state.
func NewModelInstance(cfg *config.ModelConfig, id string) *ModelInstance {
	return &ModelInstance{
		ID:     id,
		Config: cfg,
		status: ModelStatusUnloaded,
	}
}

// SetStatus sets the status of the model instance.
func (mi *ModelInstance) SetStatus(status ModelStatus) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.status = status
	if status == ModelStatusReady {
		now := time.Now()
		mi.fetchedAt = &now
	}
}

// SetError records the error associated with the model instance.
func (mi *ModelInstance) SetError(err error) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.err = err.Error()
}

// SetPath records the local artifact path.
func (mi *ModelInstance) SetPath(path string) {
	mi.mu.Lock()
	defer mi.mu.Unlock()

	mi.path = path
}

// Status returns the current status.
func (mi *ModelInstance) Status() ModelStatus {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	return mi.status
}

// Path returns the local artifact path, empty until the model is ready.
func (mi *ModelInstance) Path() string {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	return mi.path
}

// Snapshot returns a point-in-time view safe for serialization.
func (mi *ModelInstance) Snapshot() InstanceSnapshot {
	mi.mu.RLock()
	defer mi.mu.RUnlock()

	return InstanceSnapshot{
		ID:        mi.ID,
		Type:      ModelType(mi.Config.Type),
		Backend:   mi.Config.Backend,
		Status:    mi.status,
		Path:      mi.path,
		Error:     mi.err,
		FetchedAt: mi.fetchedAt,
	}
}
