package ontology

import (
	"path/filepath"
	"strings"
)

// extMimeTypes maps file extensions to a default MIME guess. The indexer and
// the filesystem extractor take every non-directory path's MIME type from
// this filename heuristic (no OS lookup is made) before consulting the
// registry's MIME→service table.
var extMimeTypes = map[string]string{
	".go":   "text/x-go",
	".mod":  "text/x-go.mod",
	".sum":  "text/x-go.sum",
	".ts":   "text/typescript",
	".tsx":  "text/typescript",
	".js":   "text/javascript",
	".jsx":  "text/javascript",
	".mjs":  "text/javascript",
	".py":   "text/x-python",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".scss": "text/x-scss",
	".json": "application/json",
	".yaml": "text/x-yaml",
	".yml":  "text/x-yaml",
	".xml":  "text/xml",
	".toml": "text/x-toml",
	".md":   "text/markdown",
	".mdx":  "text/markdown",
	".txt":  "text/plain",
	".rst":  "text/x-rst",
	".ini":  "text/plain",
	".conf": "text/plain",
	".sh":   "text/x-sh",
	".bash": "text/x-sh",
	".zsh":  "text/x-sh",
	".sql":  "text/x-sql",
	".c":    "text/x-c",
	".cpp":  "text/x-c++",
	".h":    "text/x-c",
	".hpp":  "text/x-c++",
	".java": "text/x-java",
	".rs":   "text/x-rust",
	".rb":   "text/x-ruby",
	".php":  "text/x-php",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

var extSpecialFilenames = map[string]string{
	"Dockerfile":     "text/x-dockerfile",
	"Makefile":       "text/x-makefile",
	"Jenkinsfile":    "text/x-groovy",
	"Vagrantfile":    "text/x-ruby",
	"Gemfile":        "text/x-ruby",
	"Rakefile":       "text/x-ruby",
	"CMakeLists.txt": "text/x-cmake",
}

// GuessMimeFromPath returns a best-effort MIME type for path by filename
// and extension, for use as the fallback tier described in §4.1's
// MIME→service resolution ("else return the literal name Other" sits
// downstream of this — this function only produces the MIME string fed
// into that resolution, never a service name).
func GuessMimeFromPath(path string) string {
	base := filepath.Base(path)
	if mime, ok := extSpecialFilenames[base]; ok {
		return mime
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != "" {
		if mime, ok := extMimeTypes[ext]; ok {
			return mime
		}
	}
	return "application/octet-stream"
}
