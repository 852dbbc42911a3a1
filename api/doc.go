// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the shared contracts of the hioload-aio core: handle
// and interest types, the descriptor abstraction consumed by transport
// collaborators, the poll backend contract, the waker capability, and the
// error taxonomy. It has no dependencies on the other core packages so
// that registry, reactor and executor can all build on it without cycles.
package api
