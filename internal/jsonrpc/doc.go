// Package jsonrpc implements a minimal JSON-RPC 2.0 request client over the
// three transports MCP servers speak: HTTP POST, WebSocket, and line-delimited
// stdio.
//
// Messages are raw maps rather than typed structs. The conformance probes
// need to observe exactly what a server sent, including malformed shapes a
// typed decoder would coerce or reject, and they need to send deliberately
// broken payloads. CallRaw exists for the latter; protocol-level failures
// (non-200 statuses, error members, undecodable bodies) are data in the
// Response, not errors.
package jsonrpc
