package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the
// submission service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>designpress API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "designpress-submission", "version": "v0.1.0" },
  "paths": {
    "/create-cms-item": {
      "post": {
        "summary": "Create a draft CMS item from a multipart form submission",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","required":["name"],"properties":{"name":{"type":"string"},"shortDescription":{"type":"string"},"richText":{"type":"string"},"designType":{"type":"string"},"image":{"type":"string","format":"binary"},"pdf":{"type":"string","format":"binary"}}}}}},
        "responses": { "200": { "description": "created item returned" }, "400": { "description": "missing name" }, "405": { "description": "method not allowed" }, "500": { "description": "configuration or upstream error" } }
      }
    },
    "/generate-pdf": {
      "post": {
        "summary": "Render a page URL to a base64-encoded PDF",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["url"],"properties":{"url":{"type":"string"}}}}}},
        "responses": { "200": { "description": "pdf and size returned" }, "400": { "description": "missing url" }, "405": { "description": "method not allowed" }, "500": { "description": "render failure" } }
      }
    },
    "/upload-pdf-to-cms": {
      "post": {
        "summary": "Upload a PDF as a CMS asset and patch the item's file field",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["itemId","pdfBase64"],"properties":{"itemId":{"type":"string"},"pdfBase64":{"type":"string"},"fileName":{"type":"string"}}}}}},
        "responses": { "200": { "description": "asset and updated item returned" }, "400": { "description": "missing required fields" }, "405": { "description": "method not allowed" }, "500": { "description": "configuration or upstream error" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
