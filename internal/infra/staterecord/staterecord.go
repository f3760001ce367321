// Package staterecord stores what the last run materialized in
// <build_dir>/.devbundle/state.toml so that `status` can compare it with the
// working copies.
package staterecord

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DirName  = ".devbundle"
	FileName = "state.toml"
	Version  = 1
)

type Record struct {
	Version    int       `toml:"version"`
	Bundle     string    `toml:"bundle"`
	Mode       string    `toml:"mode"`
	Config     string    `toml:"config"`
	AppliedAt  time.Time `toml:"applied_at"`
	Platform   string    `toml:"platform"`
	CMakeFile  string    `toml:"cmake_file"`
	Repos      []Repo    `toml:"repos"`
	Binaries   []Binary  `toml:"binaries"`
	Skipped    []string  `toml:"skipped,omitempty"`
	BuildOrder []string  `toml:"build_order"`
}

type Repo struct {
	Name   string `toml:"name"`
	Branch string `toml:"branch"`
	Dir    string `toml:"dir"`
	Local  bool   `toml:"local,omitempty"`
	URL    string `toml:"url,omitempty"`
	Head   string `toml:"head,omitempty"`
}

type Binary struct {
	Name       string `toml:"name"`
	Locator    string `toml:"locator"`
	InstallDir string `toml:"install_dir"`
}

func Path(buildDir string) string {
	return filepath.Join(buildDir, DirName, FileName)
}

// Save writes the record atomically.
func Save(buildDir string, rec Record) error {
	if rec.Version == 0 {
		rec.Version = Version
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}
	path := Path(buildDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write state record: %w", err)
	}
	return nil
}

// Load reads the record for buildDir. ok is false when none exists.
func Load(buildDir string) (Record, bool, error) {
	data, err := os.ReadFile(Path(buildDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read state record: %w", err)
	}
	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode state record %s: %w", Path(buildDir), err)
	}
	if rec.Version > Version {
		return Record{}, false, fmt.Errorf("state record version %d is newer than supported version %d", rec.Version, Version)
	}
	return rec, true, nil
}
