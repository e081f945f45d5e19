package stubapi

import (
	_ "embed"
	"net/http"
)

// OpenAPI is the contract served by the stub backend.
//
//go:embed openapi.yaml
var OpenAPI []byte

// Minimal HTML that renders /openapi.yaml with ReDoc.
const docsHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>flames API</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc spec-url="/openapi.yaml"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  </body>
</html>`

func handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(OpenAPI)
}

func handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}
