// Package binaryplan decides which prebuilt binaries a bundle downloads and
// which build variables they bind.
package binaryplan

import (
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

type Origin string

const (
	OriginCatalog  Origin = "catalog"
	OriginOverride Origin = "override"
)

// Input carries everything Build needs. Platform defaults to the running
// platform; BinariesDir is the directory holding one install root per binary.
type Input struct {
	Bundle      catalog.Bundle
	Catalog     *catalog.Catalog
	Skip        []string
	Overrides   []Override
	BinariesDir string
	Platform    string
}

// Override is an operator supplied NAME=VALUE assignment.
type Override struct {
	Name  string
	Value string
}

// Binding is the merged value of one build variable. Append bindings extend
// a list variable instead of replacing it.
type Binding struct {
	Name   string
	Values []string
	Append bool
	Origin Origin
}

type Binary struct {
	Name    string
	Locator string
	// Archive is the file the locator is downloaded to, inside the binaries dir.
	Archive    string
	InstallDir string
	Bindings   []Binding
	BinPath    string
}

type Plan struct {
	Binaries []Binary
	// Skipped lists bundle binaries left out on request, in catalog order.
	Skipped    []string
	Variables  []Binding
	DebugPaths []string
}

// Platform maps a GOOS value to the platform keys used in prebuilt_binaries.
func Platform(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "darwin":
		return "Macos"
	default:
		return "Linux"
	}
}

// ParseOverride splits NAME=VALUE. The value may be empty and may itself
// contain '='.
func ParseOverride(raw string) (Override, error) {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Override{}, fmt.Errorf("invalid variable override %q (expected NAME=VALUE)", raw)
	}
	return Override{Name: name, Value: value}, nil
}

// Build resolves the binaries implied by the bundle's repositories minus the
// skipped ones, in catalog declaration order, and merges their variable
// bindings with the operator overrides applied last.
func Build(in Input) (Plan, error) {
	if in.Catalog == nil {
		return Plan{}, fmt.Errorf("catalog is required")
	}
	platform := in.Platform
	if platform == "" {
		platform = Platform(runtime.GOOS)
	}

	skip := make(map[string]struct{}, len(in.Skip))
	for _, name := range in.Skip {
		name = strings.TrimSpace(name)
		if _, err := in.Catalog.Binary(name); err != nil {
			return Plan{}, &catalog.UnresolvedReferenceError{Kind: catalog.RefBinary, Name: name, Ref: "skip list"}
		}
		skip[name] = struct{}{}
	}

	implied := make(map[string]struct{})
	for _, ref := range in.Bundle.Repos {
		info, err := in.Catalog.Repo(ref.Repo)
		if err != nil {
			return Plan{}, err
		}
		for _, name := range info.Binaries {
			implied[name] = struct{}{}
		}
	}

	var plan Plan
	vars := newVariableSet()
	for _, desc := range in.Catalog.Binaries() {
		if _, ok := implied[desc.Name]; !ok {
			continue
		}
		if _, ok := skip[desc.Name]; ok {
			plan.Skipped = append(plan.Skipped, desc.Name)
			continue
		}
		if strings.TrimSpace(in.BinariesDir) == "" {
			return Plan{}, fmt.Errorf("binaries directory is required")
		}
		locator, ok := desc.LocatorFor(platform)
		if !ok {
			return Plan{}, &catalog.ConfigError{Result: catalog.ValidationResult{
				Path: in.Catalog.Path(),
				Issues: []catalog.ValidationIssue{{
					Ref:     fmt.Sprintf("%s.%s.binaries", catalog.SectionBinaries, desc.Name),
					Message: fmt.Sprintf("no download location for platform %s", platform),
				}},
			}}
		}

		root := filepath.ToSlash(filepath.Join(in.BinariesDir, desc.Name))
		bin := Binary{
			Name:       desc.Name,
			Locator:    locator,
			Archive:    filepath.Join(in.BinariesDir, desc.Name+ArchiveExt(locator)),
			InstallDir: root,
		}
		for _, rule := range desc.Variables {
			b := Binding{
				Name:   rule.Name,
				Values: []string{expand(rule, root)},
				Append: rule.Append,
				Origin: OriginCatalog,
			}
			bin.Bindings = append(bin.Bindings, b)
			vars.apply(b)
		}
		if desc.BinPath != "" {
			bin.BinPath = path.Join(root, filepath.ToSlash(desc.BinPath))
			plan.DebugPaths = append(plan.DebugPaths, bin.BinPath)
		}
		plan.Binaries = append(plan.Binaries, bin)
	}

	for _, o := range in.Overrides {
		vars.override(o)
	}
	plan.Variables = vars.list()
	return plan, nil
}

func expand(rule catalog.VariableRule, root string) string {
	value := strings.ReplaceAll(filepath.ToSlash(rule.Value), catalog.BinaryRootPlaceholder, root)
	if rule.Prepend && !strings.HasPrefix(value, root) && !path.IsAbs(value) {
		value = path.Join(root, value)
	}
	return value
}

var archiveExts = []string{".tar.gz", ".tar.xz", ".tgz", ".txz", ".zip", ".tar"}

// ArchiveExt returns the archive extension of a download URL, defaulting to
// .tgz when the URL does not end in a known one.
func ArchiveExt(locator string) string {
	name := locator
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(path.Base(name))
	for _, ext := range archiveExts {
		if strings.HasSuffix(name, ext) {
			return ext
		}
	}
	return ".tgz"
}

// variableSet is an ordered map of bindings keyed by variable name. Keys keep
// the position at which they were first written.
type variableSet struct {
	order  []string
	byName map[string]*Binding
}

func newVariableSet() *variableSet {
	return &variableSet{byName: make(map[string]*Binding)}
}

func (s *variableSet) apply(b Binding) {
	existing, ok := s.byName[b.Name]
	if !ok {
		s.order = append(s.order, b.Name)
		s.byName[b.Name] = &Binding{Name: b.Name, Values: slices.Clone(b.Values), Append: b.Append, Origin: b.Origin}
		return
	}
	if b.Append {
		existing.Values = append(existing.Values, b.Values...)
		return
	}
	existing.Values = slices.Clone(b.Values)
	existing.Append = false
	existing.Origin = b.Origin
}

func (s *variableSet) override(o Override) {
	s.apply(Binding{Name: o.Name, Values: []string{o.Value}, Origin: OriginOverride})
}

func (s *variableSet) list() []Binding {
	out := make([]Binding, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.byName[name])
	}
	return out
}
