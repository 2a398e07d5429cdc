package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/styl-labs/styld/internal/model"
)

// ModelsHandler exposes the model registry state.
type ModelsHandler struct {
	manager *model.Manager
}

// NewModelsHandler creates a new ModelsHandler instance.
func NewModelsHandler(manager *model.Manager) *ModelsHandler {
	return &ModelsHandler{manager: manager}
}

// Register mounts the model routes on the router.
func (h *ModelsHandler) Register(r gin.IRouter) {
	r.GET("/models", h.list)
}

// list reports every registered model with its download status.
func (h *ModelsHandler) list(c *gin.Context) {
	snapshots := []model.InstanceSnapshot{}

	if registry := h.manager.Registry(); registry != nil {
		for _, instance := range registry.List() {
			snapshots = append(snapshots, instance.Snapshot())
		}
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})

	c.JSON(http.StatusOK, gin.H{"models": snapshots})
}
