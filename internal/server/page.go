package server

import (
	"html/template"
	"net/http"
	"path/filepath"
)

// previewPage is the browser-side display surface. It connects to the
// WebSocket endpoint, swaps the rendered content in on each render
// message, shows the stale banner and diagnostics list, and reports
// diagnostic clicks back as diagnostic.select messages.
var previewPage = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>{{.Title}} - tmplview</title>
	<style>
		body { font-family: system-ui, sans-serif; margin: 0; }
		header { padding: 8px 16px; background: #1e1e1e; color: #ddd; font-size: 13px; display: flex; gap: 12px; align-items: center; }
		header .duration { color: #888; }
		#stale { display: none; background: #7a5b00; color: #fff; padding: 4px 16px; font-size: 13px; }
		#error { display: none; background: #5a1d1d; color: #ffb3b3; padding: 8px 16px; font-family: monospace; white-space: pre-wrap; }
		#content { padding: 16px; }
		#content pre { white-space: pre-wrap; font-family: monospace; }
		#diagnostics { border-top: 1px solid #ccc; }
		#diagnostics div { padding: 4px 16px; font-family: monospace; font-size: 13px; cursor: pointer; }
		#diagnostics .error { color: #b00020; }
		#diagnostics .warning { color: #7a5b00; }
	</style>
</head>
<body>
	<header><span>{{.Title}}</span><span class="duration" id="duration"></span></header>
	<div id="stale">Showing last successful render; the latest render failed.</div>
	<div id="error"></div>
	<div id="content"></div>
	<div id="diagnostics"></div>
	<script>
		const params = new URLSearchParams(window.location.search);
		const wsURL = "ws://" + window.location.host + "/ws?" + params.toString();

		function connect() {
			const ws = new WebSocket(wsURL);
			ws.onmessage = (event) => render(JSON.parse(event.data), ws);
			ws.onclose = () => setTimeout(connect, 1000);
		}

		function render(msg, ws) {
			const content = document.getElementById("content");
			const stale = document.getElementById("stale");
			const error = document.getElementById("error");
			const diags = document.getElementById("diagnostics");

			if (msg.type === "error") {
				error.textContent = msg.payload.message;
				error.style.display = "block";
				return;
			}

			const p = msg.payload;
			error.style.display = p.errorMessage ? "block" : "none";
			error.textContent = p.errorMessage || "";
			stale.style.display = p.isStale ? "block" : "none";
			document.getElementById("duration").textContent = p.durationMs + "ms";

			if (p.isHtml) {
				content.innerHTML = p.rendered;
			} else {
				content.innerHTML = "";
				const pre = document.createElement("pre");
				pre.textContent = p.rendered;
				content.appendChild(pre);
			}

			diags.innerHTML = "";
			for (const d of p.diagnostics) {
				const row = document.createElement("div");
				row.className = d.severity;
				const where = d.character === undefined ? (d.line + 1) : (d.line + 1) + ":" + (d.character + 1);
				row.textContent = "[" + d.source + " " + where + "] " + d.message;
				row.onclick = () => ws.send(JSON.stringify({
					type: "diagnostic.select",
					payload: { line: d.line, character: d.character || 0, source: d.source },
				}));
				diags.appendChild(row);
			}
		}

		connect();
	</script>
</body>
</html>
`))

func (s *PreviewServer) handlePreviewPage(w http.ResponseWriter, r *http.Request) {
	templatePath := r.URL.Query().Get("template")
	if templatePath == "" {
		http.Error(w, "template query parameter is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := previewPage.Execute(w, struct{ Title string }{Title: filepath.Base(templatePath)})
	if err != nil {
		s.logger.Warn("preview page render failed", "error", err.Error())
	}
}
