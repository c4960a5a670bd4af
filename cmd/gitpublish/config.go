package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultConfigFile = ".gitpublish.toml"
	defaultBranch     = "gh-pages"
	defaultTokenEnv   = "GITPUBLISH_TOKEN"

	// sourceDateEpochEnv pins commit timestamps for reproducible builds.
	sourceDateEpochEnv = "SOURCE_DATE_EPOCH"
)

// fileConfig is the layout of .gitpublish.toml. Command-line flags take
// precedence over every value here.
type fileConfig struct {
	Branch       string   `toml:"branch"`
	Remote       string   `toml:"remote"`
	Message      string   `toml:"message"`
	Destinations []string `toml:"destinations"`
	Delete       []string `toml:"delete"`
	Update       bool     `toml:"update"`
	Push         bool     `toml:"push"`

	Author authorConfig `toml:"author"`
	Auth   authConfig   `toml:"auth"`
	Log    logConfig    `toml:"log"`
	Sync   syncConfig   `toml:"sync"`
}

type authorConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type authConfig struct {
	// TokenEnv names the environment variable holding an https token.
	TokenEnv string `toml:"token_env"`

	// SSHKey is a private key file for ssh remotes.
	SSHKey           string `toml:"ssh_key"`
	SSHPassphraseEnv string `toml:"ssh_passphrase_env"`
	SSHAgent         bool   `toml:"ssh_agent"`

	// Hosts restricts credentials to matching remote hosts.
	Hosts []string `toml:"hosts"`
}

type logConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

type syncConfig struct {
	Retries int `toml:"retries"`
	Depth   int `toml:"depth"`
}

// loadConfig reads the TOML file at path. When path is empty the default
// file in repoDir is used and may be absent.
func loadConfig(path, repoDir string) (fileConfig, error) {
	var cfg fileConfig

	explicit := path != ""
	if !explicit {
		path = filepath.Join(repoDir, defaultConfigFile)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fileConfig{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// sourceDateEpoch returns the timestamp in SOURCE_DATE_EPOCH, if set.
func sourceDateEpoch() (*int64, error) {
	raw, ok := os.LookupEnv(sourceDateEpochEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourceDateEpochEnv, err)
	}
	return &ts, nil
}

// pick returns the flag value when the flag was set, then the config value
// when non-empty, then def.
func pick[T comparable](changed bool, flag, conf, def T) T {
	var zero T
	switch {
	case changed:
		return flag
	case conf != zero:
		return conf
	default:
		return def
	}
}

func pickSlice(changed bool, flag, conf []string) []string {
	if changed || len(conf) == 0 {
		return flag
	}
	return conf
}
