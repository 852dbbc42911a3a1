//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific platform metrics sources.

package control

import "runtime"

// RegisterPlatformSources attaches host-level gauges to mr.
func RegisterPlatformSources(mr *MetricsRegistry) {
	mr.RegisterSource("platform", func() map[string]int64 {
		return map[string]int64{
			"cpus":       int64(runtime.NumCPU()),
			"gomaxprocs": int64(runtime.GOMAXPROCS(0)),
			"goroutines": int64(runtime.NumGoroutine()),
		}
	})
}
