//go:build !linux

// File: reactor/backend_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platforms without a shipped OS backend must inject one via WithBackend
// (the fake backend serves tests and single-process workloads).

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-aio/api"
)

func newDefaultBackend(maxEvents int) (api.PollBackend, error) {
	return nil, fmt.Errorf("no default poll backend on this platform; use WithBackend")
}
