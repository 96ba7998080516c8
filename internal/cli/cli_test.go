package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monnet/internal/config"
	"monnet/internal/engine"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "status", "watch", "mcp", "version"})

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, config.DefaultPath, flag.DefValue)
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, config.Version+"\n", out.String())
}

func TestRunRequiresIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent-config")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_host": "a"}`), 0o600))

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--config", path})

	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrMissingField)
}

func TestLocalConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file uses defaults", func(t *testing.T) {
		opts := &options{configPath: filepath.Join(dir, "absent")}
		cfg, err := opts.localConfig()
		require.NoError(t, err)
		assert.Equal(t, engine.DefaultRules(), cfg.Thresholds)
	})

	t.Run("identity is optional", func(t *testing.T) {
		path := filepath.Join(dir, "partial")
		require.NoError(t, os.WriteFile(path, []byte(`{"thresholds": {"cpu": {"warn": 50, "alert": 60}}}`), 0o600))
		opts := &options{configPath: path}
		cfg, err := opts.localConfig()
		require.NoError(t, err)
		assert.Equal(t, engine.Rule{Warn: 50, Alert: 60}, cfg.Thresholds.CPU)
	})

	t.Run("bad thresholds fail", func(t *testing.T) {
		path := filepath.Join(dir, "inverted")
		require.NoError(t, os.WriteFile(path, []byte(`{"thresholds": {"cpu": {"warn": 95, "alert": 60}}}`), 0o600))
		opts := &options{configPath: path}
		_, err := opts.localConfig()
		var cfgErr *config.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "thresholds", cfgErr.Field)
	})

	t.Run("malformed file fails", func(t *testing.T) {
		path := filepath.Join(dir, "broken")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
		opts := &options{configPath: path}
		_, err := opts.localConfig()
		assert.Error(t, err)
	})
}
