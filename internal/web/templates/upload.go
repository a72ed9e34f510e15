// Package templates renders the loader's HTML views as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// UploadPage is the upload form posting to /api/upload.
func UploadPage(maxFileSize int64) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, uploadPageHTML, templ.EscapeString(formatBytes(maxFileSize)))
		return err
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

const uploadPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Data Loader</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; }
label { display: block; margin-top: 1rem; font-weight: 600; }
textarea { width: 100%%; min-height: 8rem; font-family: monospace; }
#result { margin-top: 1.5rem; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Load a file</h1>
<form id="upload" method="post" action="/api/upload" enctype="multipart/form-data">
<label for="file">File (.csv, .tsv, .txt, .xlsx; up to %s)</label>
<input id="file" name="file" type="file" accept=".csv,.tsv,.txt,.xlsx" required>
<label for="delimiter">Delimiter</label>
<input id="delimiter" name="delimiter" type="text" value="," maxlength="3">
<label for="columnMapping">Column mapping (JSON, source header to column)</label>
<textarea id="columnMapping" name="columnMapping" required>{"id": "id", "name": "name"}</textarea>
<button type="submit">Upload</button>
</form>
<div id="result" aria-live="polite"></div>
<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const out = document.getElementById("result");
  out.textContent = "Uploading...";
  const resp = await fetch("/api/upload", { method: "POST", body: new FormData(e.target) });
  const body = await resp.json().catch(() => ({ message: resp.statusText }));
  out.textContent = body.message + (body.code ? " (" + body.code + ")" : "");
});
</script>
</body>
</html>
`
