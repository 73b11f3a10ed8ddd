package mcp

import (
	"fmt"
	"html"
	"net/http"
	"strings"
)

const landingHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Category RAG</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; margin: 0; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 600px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; }
  h1 { font-size: 1.75rem; margin: 0 0 0.5rem; }
  .subtitle { color: #94a3b8; margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin: 1.25rem 0 0.5rem; }
  a, .endpoint { color: #38bdf8; font-family: "SF Mono", Menlo, monospace; }
  li { margin: 0.25rem 0; }
</style>
</head>
<body>
<div class="card">
  <h1>Category RAG</h1>
  <p class="subtitle">Category-routed context retrieval over the Model Context Protocol.</p>
  <div class="section-title">Endpoints</div>
  <p><a href="/mcp">/mcp</a> MCP Streamable HTTP</p>
  <p><a href="/health">/health</a> Health and readiness</p>
  <div class="section-title">Categories</div>
`

const landingTail = `</div>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /,
// listing the loaded categories.
func NewLandingHandler(svc Retriever) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		var b strings.Builder
		b.WriteString(landingHead)
		categories := svc.Categories()
		switch {
		case !svc.Ready():
			b.WriteString("  <p>Initializing...</p>\n")
		case len(categories) == 0:
			b.WriteString("  <p>None loaded.</p>\n")
		default:
			b.WriteString("  <ul>\n")
			for _, c := range categories {
				fmt.Fprintf(&b, "    <li>%s</li>\n", html.EscapeString(c.Name))
			}
			b.WriteString("  </ul>\n")
		}
		b.WriteString(landingTail)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(b.String()))
	}
}
