// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, hot-reload, and metrics aggregation for the
// async I/O core.
//
// Provides concurrent-safe state handling primitives including:
//   - Typed runtime configuration from environment and TOML files
//   - Immutable snapshot config reads with reload listeners
//   - A pull-based metrics registry fed by runtime components
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
