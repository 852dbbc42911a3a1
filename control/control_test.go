// Copyright 2026 momentics@gmail.com
// License: Apache 2.0

package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_Defaults(t *testing.T) {
	c := Default()
	if c.Workers <= 0 || c.PollTimeoutMS != 20 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	n := Config{}.Normalized()
	if n != c {
		t.Fatalf("Normalized zero config = %+v, want %+v", n, c)
	}
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvPollTimeoutMS, "50")
	t.Setenv(EnvWakeQueueCapacity, "not-a-number")

	c := FromEnv()
	if c.Workers != 3 {
		t.Fatalf("Workers = %d", c.Workers)
	}
	if c.PollTimeoutMS != 50 {
		t.Fatalf("PollTimeoutMS = %d", c.PollTimeoutMS)
	}
	if c.WakeQueueCapacity != Default().WakeQueueCapacity {
		t.Fatalf("malformed env did not keep default: %d", c.WakeQueueCapacity)
	}
}

func TestConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.toml")
	data := "workers = 2\npoll_timeout_ms = 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Workers != 2 || c.PollTimeoutMS != 5 {
		t.Fatalf("loaded config = %+v", c)
	}
	if c.WakeQueueCapacity != Default().WakeQueueCapacity {
		t.Fatalf("missing key did not keep default: %d", c.WakeQueueCapacity)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("LoadFile on a missing path succeeded")
	}
}

func TestStore_ReloadListeners(t *testing.T) {
	s := NewStore(Default())
	var seen []int
	s.OnReload(func(c Config) { seen = append(seen, c.Workers) })
	s.OnReload(func(c Config) { seen = append(seen, c.Workers*10) })

	s.Update(Config{Workers: 7})
	if s.Snapshot().Workers != 7 {
		t.Fatalf("snapshot workers = %d", s.Snapshot().Workers)
	}
	if len(seen) != 2 || seen[0] != 7 || seen[1] != 70 {
		t.Fatalf("listener dispatch = %v", seen)
	}
}

func TestMetricsRegistry_Snapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.RegisterSource("a", func() map[string]int64 {
		return map[string]int64{"x": 1, "y": 2}
	})
	mr.RegisterSource("b", func() map[string]int64 {
		return map[string]int64{"x": 9}
	})
	snap := mr.Snapshot()
	if snap["a.x"] != 1 || snap["a.y"] != 2 || snap["b.x"] != 9 {
		t.Fatalf("snapshot = %v", snap)
	}

	RegisterPlatformSources(mr)
	snap = mr.Snapshot()
	if snap["platform.cpus"] < 1 {
		t.Fatalf("platform source missing: %v", snap)
	}
}
