// Package gateway exposes the Router over HTTP: a whole-document
// conversion endpoint, an NDJSON per-event stream, and a WebSocket that
// pushes converted chunks as they are produced, plus the usual
// health/metrics surface.
package gateway

// maxBodyBytes bounds the size of a request body read into memory
// before routing by the POST endpoints. The WebSocket endpoint does not
// apply it to the document frame it reads.
const maxBodyBytes = 64 << 20
