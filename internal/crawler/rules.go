package crawler

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trackerd/trackerd/internal/gitignore"
)

// builtin ignore sets (§4.3 "Crawl filtering").
var (
	ignoreNames = map[string]struct{}{
		"CVS":           {},
		"Makefile":      {},
		"libtool":       {},
		"config.status": {},
		"conftest":      {},
		"po":            {},
		"SCCS":          {},
		"ltmain.sh":     {},
		"confdefs.h":    {},
	}

	ignoreSuffixes = []string{
		"~", ".o", ".la", ".lo", ".in", ".m4", ".rej", ".gmo",
		".orig", ".pc", ".omf", ".aux", ".tmp", ".po",
		".vmdk", ".vmx", ".vmxf", ".vmsd", ".nvram", ".part",
	}

	ignorePrefixes = []string{"autom4te", "conftest.", "confstat", "config."}
)

func systemPrefixes() []string {
	return []string{"/proc", "/dev", "/tmp", os.TempDir()}
}

// Rules decides whether a crawled path should be skipped. It layers the
// built-in name/suffix/prefix sets, a caller-configured glob list (matched
// with the gitignore pattern matcher, §SPEC_FULL C), and a runtime
// blacklist that can grow while the crawl is in flight.
type Rules struct {
	globs []string

	mu        sync.RWMutex
	blacklist map[string]struct{}
}

// NewRules builds a Rules set from the configured ignore globs
// (config.PathsConfig.IgnoreGlobs).
func NewRules(globs []string) *Rules {
	return &Rules{
		globs:     globs,
		blacklist: make(map[string]struct{}),
	}
}

// Blacklist adds a basename to the runtime blacklist. Tracker used this to
// suppress paths that repeatedly failed extraction within a single crawl.
func (r *Rules) Blacklist(basename string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blacklist[basename] = struct{}{}
}

// ShouldIgnore reports whether path should be skipped by the crawler.
func (r *Rules) ShouldIgnore(path string) bool {
	if path == "" {
		return true
	}
	for _, prefix := range systemPrefixes() {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if _, ok := ignoreNames[base]; ok {
		return true
	}
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	for _, prefix := range ignorePrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	if gitignore.MatchesAnyPattern(base, r.globs) {
		return true
	}

	r.mu.RLock()
	_, blocked := r.blacklist[base]
	r.mu.RUnlock()
	return blocked
}
