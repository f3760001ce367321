// Package settings resolves tool settings from flags, DEVBUNDLE_* environment
// variables, an optional settings.toml and built-in defaults, in that order.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/paths"
)

const (
	AppName     = "devbundle"
	EnvPrefix   = "DEVBUNDLE"
	FileName    = "settings"
	FileExt     = "toml"
	KeyConfig   = "config"
	KeyBinaries = "binaries_dir"
	KeySSH      = "ssh"
	KeyGitHost  = "git.host"
	KeyGitOrg   = "git.org"
	KeyCMakeMin = "cmake.minimum_version"
	KeyCMakeEnv = "cmake.install_dir_env"
	KeyParallel = "download.parallel"
	KeyTimeout  = "download.timeout"
	KeyVerbose  = "verbose"
	KeyDebug    = "debug"
	KeyNoColor  = "no_color"
)

type Settings struct {
	// ConfigPath is the absolute path of the bundle configuration document.
	ConfigPath string
	// BinariesDir is empty when not set; the plan then uses the config dir.
	BinariesDir string
	SSH         bool
	GitHost     string
	GitOrg      string
	CMake       CMake
	Download    Download
	Verbose     bool
	Debug       bool
	NoColor     bool
	// File is the settings file that was read, if any.
	File string
}

type CMake struct {
	MinimumVersion string
	InstallDirEnv  string
}

type Download struct {
	Parallel int
	Timeout  time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyConfig, catalog.DefaultFileName)
	v.SetDefault(KeyBinaries, "")
	v.SetDefault(KeySSH, false)
	v.SetDefault(KeyGitHost, "github.com")
	v.SetDefault(KeyGitOrg, "ManiVaultStudio")
	v.SetDefault(KeyCMakeMin, "3.17")
	v.SetDefault(KeyCMakeEnv, "HDPS_INSTALL_DIR")
	v.SetDefault(KeyParallel, 4)
	v.SetDefault(KeyTimeout, 10*time.Minute)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyNoColor, false)
}

// Dir returns the directory holding settings.toml.
func Dir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_SETTINGS_DIR"); dir != "" {
		return dir, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// Load resolves settings. flags may be nil; bound flags only win when the
// user set them on the command line.
func Load(flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dir, err := Dir()
	if err != nil {
		return Settings{}, err
	}
	v.AddConfigPath(dir)
	v.SetConfigName(FileName)
	v.SetConfigType(FileExt)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	if flags != nil {
		for key, flag := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	s := Settings{
		BinariesDir: strings.TrimSpace(v.GetString(KeyBinaries)),
		SSH:         v.GetBool(KeySSH),
		GitHost:     v.GetString(KeyGitHost),
		GitOrg:      v.GetString(KeyGitOrg),
		CMake: CMake{
			MinimumVersion: v.GetString(KeyCMakeMin),
			InstallDirEnv:  v.GetString(KeyCMakeEnv),
		},
		Download: Download{
			Parallel: v.GetInt(KeyParallel),
			Timeout:  v.GetDuration(KeyTimeout),
		},
		Verbose: v.GetBool(KeyVerbose),
		Debug:   v.GetBool(KeyDebug),
		NoColor: v.GetBool(KeyNoColor),
		File:    v.ConfigFileUsed(),
	}
	if s.ConfigPath, err = paths.Abs(v.GetString(KeyConfig)); err != nil {
		return Settings{}, fmt.Errorf("resolve config path: %w", err)
	}
	if s.BinariesDir != "" {
		if s.BinariesDir, err = paths.Abs(s.BinariesDir); err != nil {
			return Settings{}, fmt.Errorf("resolve binaries dir: %w", err)
		}
	}
	if s.Download.Parallel < 1 {
		s.Download.Parallel = 1
	}
	return s, nil
}

// flagKeys maps settings keys to the CLI flags that may override them.
var flagKeys = map[string]string{
	KeyConfig:   "config",
	KeyBinaries: "binaries-dir",
	KeySSH:      "ssh",
	KeyVerbose:  "verbose",
	KeyDebug:    "debug",
	KeyNoColor:  "no-color",
}
