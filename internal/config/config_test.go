package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.UserInterface.DefaultProtocol = "SCP"
	cfg.UserInterface.ShowHiddenFiles = true
	cfg.Remote.SSHKeys["example.com"] = "/home/user/.ssh/id_rsa"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, writeFile(path, "user_interface = \"not-a-table\"\n[[keys]]\nnope = true\n"))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, writeFile(path, `
[user_interface]
default_protocol = "SFTP"
text_editor = "vim"
show_hidden_files = false
file_fmt = "{NAME}"
remote_file_fmt = "{NAME}"
prompt_on_file_replace = true
notifications = true
notification_threshold = 1024
some_unknown_future_field = 42
`))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SFTP", cfg.UserInterface.DefaultProtocol)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
