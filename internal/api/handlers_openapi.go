package api

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

const (
	openAPISpecPath = "/api/openapi.yaml"
	docsCacheMaxAge = "public, max-age=3600"
)

//go:embed openapi/openapi.yaml
var openAPISpec []byte

// openAPIETag is a strong validator over the embedded document, stable for the life of a build.
var openAPIETag = func() string {
	sum := sha256.Sum256(openAPISpec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// ServeOpenAPISpec serves the embedded OpenAPI document. Conditional and HEAD
// requests are answered by http.ServeContent using the content hash as ETag.
func (h *Handlers) ServeOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", docsCacheMaxAge)
	w.Header().Set("ETag", openAPIETag)
	http.ServeContent(w, r, "openapi.yaml", time.Time{}, bytes.NewReader(openAPISpec))
}

var swaggerUITemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Leaderboard API {{.Version}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      tryItOutEnabled: true,
      displayRequestDuration: true
    });
  </script>
</body>
</html>
`))

type docsPage struct {
	Version string
	SpecURL string
}

// ServeSwaggerUI renders an interactive explorer for the leaderboard API.
func (h *Handlers) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	page := docsPage{Version: h.versionInfo.DisplayVersion(), SpecURL: openAPISpecPath}
	if err := swaggerUITemplate.Execute(&buf, page); err != nil {
		slog.Error("Failed to render API docs", "error", err)
		http.Error(w, "failed to render docs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", docsCacheMaxAge)
	_, _ = buf.WriteTo(w)
}
