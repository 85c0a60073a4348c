package testsupport

import (
	"testing"

	"farewire/internal/config"
)

// NewConfig returns a normalized configuration rooted in a per-test temp
// directory.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogDir = dir
	cfg.Sheet.Backend = "sqlite"
	cfg.Runner.WorkerID = "test-worker"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
