package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cmk", cfg.API.Binary)
	assert.Equal(t, "Default Guest Network", cfg.Catalog.NetworkOffering)
	assert.Equal(t, "data.disk.general", cfg.Catalog.DiskOffering)
	assert.Equal(t, []string{"small", "medium", "large"}, cfg.Catalog.Plans)
	assert.True(t, cfg.Catalog.TemplateFilter.MatchString("Ubuntu 24.04 LTS"))
	assert.False(t, cfg.Catalog.TemplateFilter.MatchString("Debian 12"))
	assert.Equal(t, "00:03", cfg.Snapshots.Schedule)
	assert.Equal(t, 3, cfg.Snapshots.MaxSnaps)
	assert.Equal(t, "America/Sao_Paulo", cfg.Snapshots.Timezone)
	assert.Equal(t, []string{"ZP01", "ZP02"}, cfg.Snapshots.Zones)
	assert.Equal(t, 2*time.Second, cfg.Teardown.DetachSettle)
	assert.Equal(t, 5*time.Second, cfg.Teardown.NetworkSettle)
	assert.Equal(t, "lunacloud-deploy-id", cfg.Tags.Volume)
	assert.Empty(t, cfg.Userdata.Web)
}

func Test_LoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	settings := []byte(`
api:
  binary: /usr/local/bin/cmk
catalog:
  plans:
    - tiny
    - small
  template_filter: "^Debian.*12.*$"
snapshots:
  max_snaps: 7
userdata:
  web: scripts/web.sh
teardown:
  detach_settle: 100ms
`)
	require.NoError(t, os.WriteFile(path, settings, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/cmk", cfg.API.Binary)
	assert.Equal(t, []string{"tiny", "small"}, cfg.Catalog.Plans)
	assert.True(t, cfg.Catalog.TemplateFilter.MatchString("Debian GNU 12"))
	assert.Equal(t, 7, cfg.Snapshots.MaxSnaps)
	assert.Equal(t, "scripts/web.sh", cfg.Userdata.Web)
	assert.Equal(t, 100*time.Millisecond, cfg.Teardown.DetachSettle)

	// untouched keys keep their defaults
	assert.Equal(t, "Default Guest Network", cfg.Catalog.NetworkOffering)
	assert.Equal(t, "00:03", cfg.Snapshots.Schedule)
}

func Test_LoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func Test_LoadBadRegexp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  template_filter: '['\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
