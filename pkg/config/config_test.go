package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/ch"
	"github.com/azybler/road_router/pkg/profile"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ch.DefaultConfig(), cfg.Contraction)
	assert.Len(t, cfg.Profiles, 3)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 500.0, cfg.Snap.MaxDistance)

	p, ok := cfg.Profile("car")
	assert.True(t, ok)
	assert.Equal(t, profile.Car(), p)
	_, ok = cfg.Profile("boat")
	assert.False(t, ok)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
contraction:
  depth_factor: 2
  workers: 3
storage:
  path: /var/lib/router.db
server:
  addr: ":9000"
  request_timeout: 2s
  default_profile: walk
profiles:
  - name: walk
    metric: distance
    handler: augmented
    speeds:
      footway: 5
      residential: 5
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, float32(2), cfg.Contraction.DepthFactor)
	assert.Equal(t, 3, cfg.Contraction.Workers)
	assert.Equal(t, ch.DefaultConfig().DifferenceFactor, cfg.Contraction.DifferenceFactor)
	assert.Equal(t, "/var/lib/router.db", cfg.Storage.Path)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)

	require.Len(t, cfg.Profiles, 1)
	walk := cfg.Profiles[0]
	assert.Equal(t, "walk", walk.Name)
	assert.True(t, walk.Augmented())
	assert.Equal(t, map[string]float32{"footway": 5, "residential": 5}, walk.Speeds)
	assert.Equal(t, logrus.DebugLevel, cfg.Logger().GetLevel())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"duplicate profile", "profiles:\n  - {name: a, metric: time, speeds: {road: 10}}\n  - {name: a, metric: time, speeds: {road: 10}}\n"},
		{"invalid profile", "profiles:\n  - {name: a, metric: speed, speeds: {road: 10}}\n"},
		{"no profiles", "profiles: []\n"},
		{"unknown default", "server:\n  default_profile: boat\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"no workers", "contraction:\n  workers: 0\n"},
		{"no storage", "storage:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
