// Package bus is the thin service-bus adapter of §4.7. It exposes a small,
// fixed set of MCP tools and forwards every call straight into
// internal/query (§4.5) or internal/livesearch (§4.6). It owns
// name-watching: when a client disconnects, the adapter detaches its
// live-search subscription, which cascades into CloseSession for every
// session that client had open. No business logic lives here.
package bus
