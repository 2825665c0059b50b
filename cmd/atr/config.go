package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dargueta/atrdisk/disks"
)

//go:embed default.toml
var defaultConfigData string

// defaultConfigName is looked for in the user's home directory when --config
// isn't given.
const defaultConfigName = ".atr.toml"

// Config holds the settings read from the TOML configuration file.
type Config struct {
	DefaultLayout   string `toml:"default_layout"`
	EOL             uint8  `toml:"eol"`
	ShowSystemFiles bool   `toml:"show_system_files"`
	FixAll          bool   `toml:"fix_all"`
	BackupBeforeFix bool   `toml:"backup_before_fix"`

	// Layout is DefaultLayout after parsing.
	Layout disks.Layout `toml:"-"`
}

// DefaultConfig returns the settings used when there's no configuration file.
func DefaultConfig() Config {
	var conf Config
	_, err := toml.Decode(defaultConfigData, &conf)
	if err != nil {
		panic(fmt.Errorf("embedded default config is broken: %w", err))
	}
	conf.Layout, err = disks.ParseLayout(conf.DefaultLayout)
	if err != nil {
		panic(fmt.Errorf("embedded default config is broken: %w", err))
	}
	return conf
}

// LoadConfig reads the configuration file at `path` on top of the defaults.
// If `path` is empty, ~/.atr.toml is used if it exists. A file given
// explicitly must exist.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()

	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return conf, nil
		}
		path = filepath.Join(home, defaultConfigName)
	}

	meta, err := toml.DecodeFile(path, &conf)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return conf, fmt.Errorf("failed to load TOML config at %s: %w", path, err)
	}

	undecoded := meta.Undecoded()
	if len(undecoded) > 0 {
		return conf, fmt.Errorf("unknown key %q in config at %s", undecoded[0].String(), path)
	}

	conf.Layout, err = disks.ParseLayout(conf.DefaultLayout)
	if err != nil {
		return conf, fmt.Errorf("bad default_layout in config at %s: %w", path, err)
	}
	return conf, nil
}
