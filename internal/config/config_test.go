package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules_file: Bakefile.custom\njobs: 4\nverbose: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Config{RulesFile: "Bakefile.custom", Jobs: 4, Verbose: true}, cfg)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: [this is not an int"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
