package files

import (
	"mime"
	"path/filepath"
	"strings"
)

// ClassifyDocType maps a path to the document type the viewer uses to pick a
// renderer.
func ClassifyDocType(relPath string) string {
	base := strings.ToLower(filepath.Base(relPath))
	switch base {
	case "dockerfile", "makefile", "jenkinsfile", "justfile":
		return "code"
	case "go.mod", "go.sum", "package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml":
		return "data"
	}

	ext := strings.ToLower(filepath.Ext(base))
	switch ext {
	case ".go", ".rs", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".c", ".cc", ".cpp", ".h", ".hpp", ".cs", ".rb", ".php", ".swift", ".kt", ".kts", ".scala", ".sh", ".bash", ".zsh", ".sql", ".lua", ".css":
		return "code"
	case ".md", ".markdown", ".mdx", ".rst", ".adoc":
		return "md"
	case ".tex", ".sty", ".cls", ".bib":
		return "tex"
	case ".txt", ".log", ".ini", ".cfg", ".conf":
		return "text"
	case ".csv", ".tsv", ".json", ".jsonl", ".xml", ".yaml", ".yml", ".toml":
		return "data"
	case ".html", ".htm", ".xhtml":
		return "html"
	case ".pdf":
		return "pdf"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff", ".svg":
		return "image"
	case ".mp3", ".wav", ".m4a", ".flac", ".aac", ".ogg", ".opus":
		return "audio"
	case ".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar":
		return "archive"
	default:
		return "binary_ignored"
	}
}

// MimeType guesses a content type from the extension, falling back on what
// the bytes looked like.
func MimeType(relPath string, isText bool) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(relPath))); t != "" {
		return t
	}
	switch ClassifyDocType(relPath) {
	case "md":
		return "text/markdown"
	case "tex":
		return "text/x-tex"
	}
	if isText {
		return "text/plain"
	}
	return "application/octet-stream"
}
