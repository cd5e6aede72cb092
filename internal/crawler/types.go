// Package crawler walks a module's configured roots asynchronously,
// filtering paths through the built-in and configured ignore rules, and
// feeds discovered files into the indexer's bounded queues (§4.3).
package crawler

import "time"

// Item is one unit of crawl work: a path belonging to a named module.
type Item struct {
	Module string
	Path   string
	IsDir  bool
}

// Module is one named root set the crawler walks in turn. The teacher's
// "project" concept becomes a named collection of crawl roots here —
// trackerd has exactly one configured set (paths.crawl_roots) unless the
// caller registers more.
type Module struct {
	Name  string
	Roots []string
}

// Stats accumulates crawl-wide counters. Crawler.Stats returns a snapshot
// of them at any point during or after a crawl.
type Stats struct {
	FilesFound   int
	FilesIgnored int
	DirsFound    int
	Elapsed      time.Duration
}
