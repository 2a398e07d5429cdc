package http

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.json
var openapiJSON []byte

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>styld - Swagger UI</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => {
    window.ui = SwaggerUIBundle({
      url: "/api/v1/openapi.json",
      dom_id: "#swagger-ui"
    });
  };
</script>
</body>
</html>
`

const redocPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>styld - ReDoc</title>
</head>
<body>
<redoc spec-url="/api/v1/openapi.json"></redoc>
<script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>
`

// DocsHandler serves the interactive API documentation.
type DocsHandler struct{}

// NewDocsHandler creates a new DocsHandler instance.
func NewDocsHandler() *DocsHandler {
	return &DocsHandler{}
}

// Register mounts the documentation routes on the router.
func (h *DocsHandler) Register(r gin.IRouter) {
	r.GET("/docs", h.swagger)
	r.GET("/redoc", h.redoc)
	r.GET("/api/v1/openapi.json", h.openapi)
}

func (h *DocsHandler) swagger(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}

func (h *DocsHandler) redoc(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(redocPage))
}

func (h *DocsHandler) openapi(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", openapiJSON)
}
