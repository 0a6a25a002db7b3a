package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.InDelta(t, 0.80, cfg.Matching.DisplayThreshold, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Matching.TemplateCacheTTL)
	assert.False(t, cfg.APSEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TAKEOFF_DATABASE_DRIVER", "postgres")
	t.Setenv("TAKEOFF_DATABASE_DSN", "postgres://u:p@localhost:5432/takeoff")
	t.Setenv("TAKEOFF_TAKEOFF_TIMEOUT", "90s")
	t.Setenv("TAKEOFF_APS_CLIENT_ID", "id")
	t.Setenv("TAKEOFF_APS_CLIENT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/takeoff", cfg.Database.DSN)
	assert.Equal(t, 90*time.Second, cfg.Takeoff.Timeout)
	assert.True(t, cfg.APSEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takeoff.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: gcs\n  gcs_bucket: plans\nraster:\n  command: planscan\n"), 0o600))
	t.Setenv("TAKEOFF_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "plans", cfg.Storage.GCSBucket)
	assert.Equal(t, "planscan", cfg.Raster.Command)
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Database.Driver = "mysql"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg = base()
	cfg.Storage.Backend = "gcs"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg = base()
	cfg.Matching.DisplayThreshold = 1.5
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg = base()
	cfg.APS.ClientID = "only-id"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}
