// Package kit holds the small cross-cutting helpers for exposing relay
// operations over transports.
package kit

import "context"

// Endpoint is a transport-agnostic operation: typed request in, typed
// response out. HTTP handlers and MCP tools adapt onto this shape.
type Endpoint func(ctx context.Context, req any) (any, error)
