// Package server is the HTTP transport layer. It exposes the signal webhook,
// the signed interaction callback, and the bearer-authenticated operator API,
// translating workflow outcomes and errors into status codes. It holds no
// pipeline logic of its own.
package server
