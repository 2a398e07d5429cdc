package http

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/styl-labs/styld/internal/backend"
	"github.com/styl-labs/styld/internal/service"
)

// ImagesHandler handles HTTP requests for image processing.
type ImagesHandler struct {
	images *service.Images
}

// NewImagesHandler creates a new ImagesHandler instance.
func NewImagesHandler(images *service.Images) *ImagesHandler {
	return &ImagesHandler{images: images}
}

// Register mounts the image routes on the router.
func (h *ImagesHandler) Register(r gin.IRouter) {
	r.POST("/images/remove-background", h.removeBackground)
}

// removeBackground accepts a multipart image upload and responds with
// the cutout as PNG. The model artifact is fetched on the first call
// and reused afterwards.
func (h *ImagesHandler) removeBackground(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file field is required"})
		return
	}

	if !strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "File must be an image"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Image processing failed: " + err.Error()})
		return
	}
	defer file.Close()

	resp, err := h.images.RemoveBackground(c.Request.Context(), formValue(c, "model"), &backend.Request{
		Input:      file,
		Parameters: requestParameters(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Image processing failed: " + err.Error()})
		return
	}

	data, err := io.ReadAll(resp.Output)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Image processing failed: " + err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", cutoutFilename(fileHeader.Filename)))
	c.Data(http.StatusOK, "image/png", data)
}

// requestParameters collects the optional tuning fields into backend
// parameters. Values that do not parse are dropped so the configured
// defaults apply.
func requestParameters(c *gin.Context) map[string]any {
	params := map[string]any{}

	for _, key := range []string{"crop", "alpha_matting", "post_process_mask"} {
		if raw := formValue(c, key); raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				params[key] = v
			}
		}
	}

	for _, key := range []string{"colors", "threshold", "feather_radius"} {
		if raw := formValue(c, key); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				params[key] = v
			}
		}
	}

	if len(params) == 0 {
		return nil
	}

	return params
}

// formValue reads a tuning field from the query string or the
// multipart form, query taking precedence.
func formValue(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}

// cutoutFilename derives the download name from the uploaded one.
func cutoutFilename(uploaded string) string {
	stem := strings.TrimSuffix(filepath.Base(uploaded), filepath.Ext(uploaded))
	if stem == "" || stem == "." {
		stem = "image"
	}
	return stem + "_no_bg.png"
}
