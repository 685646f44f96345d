// Package engine is a minimal JSON-RPC 2.0 client for the analytics engine's
// websocket API. It implements exactly one query: open an app, apply field
// selections and read the selected plus optional cardinality of a field.
package engine
