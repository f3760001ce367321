package materialize

import (
	"fmt"
	"strings"
)

// Mode selects how existing working copies are treated.
type Mode string

const (
	// ModeClean deletes repository directories and the build tree, then
	// clones everything again.
	ModeClean Mode = "clean"
	// ModeCMakeOnly leaves repositories untouched and only regenerates the
	// build file.
	ModeCMakeOnly Mode = "cmake_only"
	// ModeDevelop clones missing repositories and checks out the configured
	// branch in existing ones.
	ModeDevelop Mode = "develop"
)

var Modes = []Mode{ModeClean, ModeCMakeOnly, ModeDevelop}

func ParseMode(raw string) (Mode, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	if value == "" {
		return ModeClean, nil
	}
	for _, m := range Modes {
		if string(m) == value {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (want clean, cmake_only or develop)", raw)
}

// Destructive reports whether the mode deletes anything, and therefore
// needs the working tree safety check.
func (m Mode) Destructive() bool {
	return m == ModeClean
}
