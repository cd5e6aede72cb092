// Package livesearch implements the live-search matcher of §4.6: a
// search is a standing Xesam query whose result set is kept in sync with
// the indexer's event log via a debounced matching cycle, and whose hits
// are pushed to subscribers as HitsAdded/HitsRemoved/HitsModified signals
// rather than re-polled.
package livesearch
