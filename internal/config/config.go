// Package config implements the configuration, key-bindings, and theme
// document (spec §4.9): a TOML file with strict-but-forgiving loading
// (unknown fields ignored, malformed fields fail) and atomic saves.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// GroupDirs controls where directories land relative to files when
// sorting an explorer pane.
type GroupDirs string

const (
	GroupDirsFirst GroupDirs = "first"
	GroupDirsLast  GroupDirs = "last"
)

// UserInterface is the `user_interface` TOML section.
type UserInterface struct {
	DefaultProtocol       string     `toml:"default_protocol"`
	TextEditor            string     `toml:"text_editor"`
	ShowHiddenFiles       bool       `toml:"show_hidden_files"`
	CheckForUpdates       *bool      `toml:"check_for_updates,omitempty"`
	GroupDirs             *GroupDirs `toml:"group_dirs,omitempty"`
	FileFmt               string     `toml:"file_fmt"`
	RemoteFileFmt         string     `toml:"remote_file_fmt"`
	PromptOnFileReplace   bool       `toml:"prompt_on_file_replace"`
	Notifications         bool       `toml:"notifications"`
	NotificationThreshold int64      `toml:"notification_threshold"`
}

// Remote is the `remote` TOML section: SSH key lookup by host or
// user@host.
type Remote struct {
	SSHKeys map[string]string `toml:"ssh_keys"`
}

// UserConfig is the whole on-disk document.
type UserConfig struct {
	UserInterface UserInterface `toml:"user_interface"`
	Remote        Remote        `toml:"remote"`
	Keys          KeyBindings   `toml:"keys"`
	Theme         Theme         `toml:"theme"`
}

// Default builds the canonical default configuration, used to seed a
// new config file and as the baseline for round-trip comparisons.
func Default() UserConfig {
	return UserConfig{
		UserInterface: UserInterface{
			DefaultProtocol:       "SFTP",
			TextEditor:            defaultEditor(),
			ShowHiddenFiles:       false,
			FileFmt:               "{NAME:24} {SIZE:10} {MTIME:17}",
			RemoteFileFmt:         "{NAME:24} {SIZE:10} {MTIME:17}",
			PromptOnFileReplace:   true,
			Notifications:         true,
			NotificationThreshold: 1024 * 1024 * 10,
		},
		Remote: Remote{SSHKeys: map[string]string{}},
		Keys:   DefaultKeyBindings(),
		Theme:  DefaultTheme(),
	}
}

func defaultEditor() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vim"
}

// Load reads a config from path, returning Default() with no error when
// the file does not exist. Unknown keys are ignored; a structurally
// invalid document is a hard error (the original's SyntaxError).
func Load(path string) (UserConfig, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return UserConfig{}, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return UserConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save serializes cfg to path atomically: write to a temp file in the
// same directory, then rename over the target.
func Save(path string, cfg UserConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
