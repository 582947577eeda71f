//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRootPreRun executes rootCmd's PersistentPreRunE from a temp working
// directory seeded with the given config.yaml (none when empty), with the
// cfg global reset for the duration of the test.
func runRootPreRun(t *testing.T, configYAML string) error {
	t.Helper()

	tmpDir := t.TempDir()
	if configYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(configYAML), 0o644))
	}

	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))

	oldCfg := cfg
	cfg = nil
	t.Cleanup(func() {
		cfg = oldCfg
		_ = os.Chdir(origDir)
	})

	return rootCmd.PersistentPreRunE(rootCmd, nil)
}

func TestRootPreRun_ReadsConfigFile(t *testing.T) {
	err := runRootPreRun(t, `
weaviate:
  host: weaviate.internal:8080
  class: Provision
cascade:
  accept_score: 0.7
audit:
  enabled: true
  driver: postgres
  database_url: postgres://audit
log:
  level: info
  format: console
`)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "weaviate.internal:8080", cfg.Weaviate.Host)
	assert.Equal(t, 0.7, cfg.Cascade.AcceptScore)
	assert.Equal(t, "postgres", cfg.Audit.Driver)
	assert.True(t, cfg.Audit.Enabled)
}

func TestRootPreRun_DefaultsWithoutConfigFile(t *testing.T) {
	err := runRootPreRun(t, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "sqlite", cfg.Audit.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.55, cfg.Cascade.AcceptScore)
	assert.Equal(t, 3, cfg.Cascade.MinSufficientHits)
	assert.Equal(t, "Provision", cfg.Weaviate.Class)
	assert.Equal(t, 24000, cfg.Fusion.BudgetChars)
}

func TestRootPreRun_BadLogLevelFailsLoggerInit(t *testing.T) {
	err := runRootPreRun(t, `
log:
  level: NOT_A_LEVEL
  format: console
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestRootPreRun_MalformedYAML(t *testing.T) {
	err := runRootPreRun(t, "weaviate: [yaml: bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRootPostRun_SyncsWithoutPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		rootCmd.PersistentPostRun(rootCmd, nil)
	})
}
