// Package websocket wraps gorilla/websocket for load generation.
//
// A [Dialer] performs the opening handshake and returns a [Conn] split into
// two halves: an [Outbound] half used by exactly one sending goroutine and an
// [Inbound] half used by exactly one reading goroutine. gorilla/websocket
// supports one concurrent writer and one concurrent reader, so the halves
// need no locking between them.
//
// Payloads are prepared once with [NewTextPayload] and written many times
// without re-framing.
package websocket
