// Package cmakefile renders and writes the top-level CMakeLists.txt that
// pulls every repository of a bundle into one build.
package cmakefile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const FileName = "CMakeLists.txt"

type Variable struct {
	Name   string
	Values []string
	Append bool
	// Override marks operator supplied values; they are forced into the cache.
	Override bool
}

// Subdirectory is one repository. Dir is absolute; repositories outside the
// source directory get an explicit binary directory.
type Subdirectory struct {
	Name string
	Dir  string
}

// Target is one subproject in build order with its in-bundle dependencies.
type Target struct {
	Name         string
	Dependencies []string
	External     []string
}

type Input struct {
	Project        string
	MinimumVersion string
	SourceDir      string
	InstallDir     string
	InstallDirEnv  string
	Variables      []Variable
	Subdirectories []Subdirectory
	Targets        []Target
	DebugPaths     []string
}

func Render(in Input) string {
	var b strings.Builder
	minimum := in.MinimumVersion
	if minimum == "" {
		minimum = "3.17"
	}
	fmt.Fprintf(&b, "# Generated by devbundle for bundle %s. Changes are lost on the next run.\n", in.Project)
	fmt.Fprintf(&b, "cmake_minimum_required(VERSION %s)\n\n", minimum)
	fmt.Fprintf(&b, "project(%s)\n\n", in.Project)

	if in.InstallDirEnv != "" && in.InstallDir != "" {
		fmt.Fprintf(&b, "if(NOT DEFINED ENV{%s})\n", in.InstallDirEnv)
		fmt.Fprintf(&b, "    set(ENV{%s} %s)\n", in.InstallDirEnv, quote(filepath.ToSlash(in.InstallDir)))
		b.WriteString("endif()\n\n")
	}

	if len(in.Variables) > 0 {
		for _, v := range in.Variables {
			switch {
			case v.Append:
				fmt.Fprintf(&b, "list(APPEND %s", v.Name)
				for _, value := range v.Values {
					fmt.Fprintf(&b, " %s", quote(value))
				}
				b.WriteString(")\n")
			case v.Override:
				fmt.Fprintf(&b, "set(%s %s CACHE STRING \"\" FORCE)\n", v.Name, quote(strings.Join(v.Values, ";")))
			default:
				fmt.Fprintf(&b, "set(%s %s CACHE PATH \"\")\n", v.Name, quote(strings.Join(v.Values, ";")))
			}
		}
		b.WriteString("\n")
	}

	for _, sub := range in.Subdirectories {
		if rel, ok := within(in.SourceDir, sub.Dir); ok {
			fmt.Fprintf(&b, "add_subdirectory(%s)\n", rel)
			continue
		}
		fmt.Fprintf(&b, "add_subdirectory(%s \"${CMAKE_CURRENT_BINARY_DIR}/%s\")\n", quote(filepath.ToSlash(sub.Dir)), sub.Name)
	}

	if len(in.Targets) > 0 {
		startup := in.Targets[0].Name
		fmt.Fprintf(&b, "\nset_property(DIRECTORY ${CMAKE_CURRENT_SOURCE_DIR} PROPERTY VS_STARTUP_PROJECT %s)\n", startup)
		if len(in.DebugPaths) > 0 {
			fmt.Fprintf(&b, "set_target_properties(%s PROPERTIES VS_DEBUGGER_ENVIRONMENT \"PATH=%%PATH%%;%s\")\n", startup, strings.Join(in.DebugPaths, ";"))
		}
	}

	wroteHeader := false
	for _, t := range in.Targets {
		if len(t.Dependencies) == 0 && len(t.External) == 0 {
			continue
		}
		if !wroteHeader {
			b.WriteString("\n")
			wroteHeader = true
		}
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, "add_dependencies(%s %s)\n", t.Name, strings.Join(t.Dependencies, " "))
		}
		if len(t.External) > 0 {
			fmt.Fprintf(&b, "# %s also needs %s from outside this bundle\n", t.Name, strings.Join(t.External, ", "))
		}
	}
	return b.String()
}

func within(root, dir string) (string, bool) {
	if root == "" {
		return "", false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

var backupPattern = regexp.MustCompile(`^CMakeLists\.(\d{3,})$`)

// Write saves content as dir/CMakeLists.txt. An existing file is first
// renamed to the next free CMakeLists.NNN, whose name is returned.
func Write(dir, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	backup := ""
	if _, err := os.Stat(path); err == nil {
		next, err := nextBackup(dir)
		if err != nil {
			return "", err
		}
		backup = next
		if err := os.Rename(path, filepath.Join(dir, backup)); err != nil {
			return "", fmt.Errorf("back up %s: %w", FileName, err)
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return backup, fmt.Errorf("write %s: %w", FileName, err)
	}
	return backup, nil
}

func nextBackup(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dir, err)
	}
	next := 0
	for _, entry := range entries {
		m := backupPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("CMakeLists.%03d", next), nil
}
