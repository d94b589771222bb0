// Package config loads llbrew settings.
//
// Settings are layered: built-in defaults, then the config file, then
// LLBREW_* environment variables. Nested keys are separated by a double
// underscore in the environment, e.g. LLBREW_BUILD__TYPE=Debug.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/goplus/llbrew/internal/errors"
	"github.com/goplus/llbrew/internal/logging"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "LLBREW_"

// Config is the effective configuration.
type Config struct {
	Prefix    string    `koanf:"prefix"`
	CacheDir  string    `koanf:"cache_dir"`
	Build     Build     `koanf:"build"`
	Formula   Formula   `koanf:"formula"`
	Tools     Tools     `koanf:"tools"`
	Secondary Secondary `koanf:"secondary"`
}

type Build struct {
	Type      string `koanf:"type"`
	Generator string `koanf:"generator"`
}

type Formula struct {
	Dirs   []string `koanf:"dirs"`
	Remote string   `koanf:"remote"`
}

// Tools are the external executables. Bare names are looked up in PATH.
type Tools struct {
	CMake  string `koanf:"cmake"`
	Make   string `koanf:"make"`
	Python string `koanf:"python"`
	Git    string `koanf:"git"`
	Patch  string `koanf:"patch"`
}

type Secondary struct {
	// Installer overrides the installer formulas ask for.
	Installer string `koanf:"installer"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"prefix":              filepath.Join(xdg.DataHome, "llbrew"),
		"cache_dir":           filepath.Join(xdg.CacheHome, "llbrew"),
		"build.type":          "",
		"build.generator":     "",
		"formula.dirs":        []string{},
		"formula.remote":      "",
		"tools.cmake":         "cmake",
		"tools.make":          "make",
		"tools.python":        "python3",
		"tools.git":           "git",
		"tools.patch":         "patch",
		"secondary.installer": "",
	}
}

// DefaultPath returns the config file looked for when none is given:
// the first of config.toml, config.yaml and config.yml found under
// $XDG_CONFIG_HOME/llbrew, or "" if there is none.
func DefaultPath() string {
	dir := filepath.Join(xdg.ConfigHome, "llbrew")
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads the configuration. An explicitly given path must exist;
// with path empty DefaultPath is used if present.
func Load(path string) (*Config, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	if path == "" {
		path = DefaultPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "config file %s", path)
	}
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "config file")
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load config from %s", path)
		}
		logger.Debug().Str("path", path).Msg("config file loaded")
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToSliceHookFunc(string(filepath.ListSeparator)),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to unmarshal configuration")
	}
	cfg.Prefix = expandHome(cfg.Prefix)
	cfg.CacheDir = expandHome(cfg.CacheDir)
	for i, d := range cfg.Formula.Dirs {
		cfg.Formula.Dirs[i] = expandHome(d)
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, fmt.Errorf("%s: unknown config format", path)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		return filepath.Join(xdg.Home, p[1:])
	}
	return p
}
