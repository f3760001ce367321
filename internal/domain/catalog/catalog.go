// Package catalog loads the bundle configuration document: the build_bundles,
// repo_info and prebuilt_binaries sections. Each section becomes a lookup
// table keyed by name and every cross-reference between them is checked when
// the document is loaded. A Catalog is read-only once returned and may be
// shared between goroutines.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	SectionBundles  = "build_bundles"
	SectionRepos    = "repo_info"
	SectionBinaries = "prebuilt_binaries"

	// AppendMarker ends a variable name whose binding extends a list.
	AppendMarker = "+"
	// PrependMarker starts a variable name whose value is relative to the
	// binary's install root.
	PrependMarker = "@"
	// BinaryRootPlaceholder is replaced with the binary's install root in
	// variable values.
	BinaryRootPlaceholder = "${BINARY_ROOT}"

	// DefaultFileName is the configuration file looked up when none is given.
	DefaultFileName = "config.json"
)

type Catalog struct {
	path string
	dir  string

	bundles  []Bundle
	repos    []RepoInfo
	binaries []Binary

	bundleIndex map[string]int
	repoIndex   map[string]int
	binaryIndex map[string]int
	// owners maps a subproject name to the repository declaring it.
	owners map[string]string
}

type Bundle struct {
	Name string
	// BuildDir is kept as written; use Catalog.ResolvePath for the absolute form.
	BuildDir string
	Branch   string
	Repos    []RepoRef
}

// RepoRef is one repository of a bundle. Branch already carries the bundle
// default when the entry omits one. A non-empty Local replaces the clone with
// a path to an existing working copy.
type RepoRef struct {
	Repo   string
	Branch string
	Local  string
}

func (r RepoRef) IsLocal() bool {
	return strings.TrimSpace(r.Local) != ""
}

type RepoInfo struct {
	Name string
	// URL overrides the clone location derived from the git host and organization.
	URL         string
	Subprojects []Subproject
	Binaries    []string
}

type Subproject struct {
	Name         string
	Dependencies []string
}

type Binary struct {
	Name string
	// Locators maps a platform (Windows, Macos, Linux) to an archive URL.
	Locators map[string]string
	// Locator is used for platforms without an entry in Locators.
	Locator   string
	Variables []VariableRule
	BinPath   string
}

// LocatorFor returns the archive URL for a platform.
func (b Binary) LocatorFor(platform string) (string, bool) {
	if url, ok := b.Locators[platform]; ok && url != "" {
		return url, true
	}
	if b.Locator != "" {
		return b.Locator, true
	}
	return "", false
}

type VariableRule struct {
	Name    string
	Value   string
	Append  bool
	Prepend bool
}

// ParseVariableName strips the append and prepend markers from a raw
// cmake_variables key.
func ParseVariableName(raw string) VariableRule {
	name := strings.TrimSpace(raw)
	rule := VariableRule{}
	if strings.HasPrefix(name, PrependMarker) {
		rule.Prepend = true
		name = strings.TrimPrefix(name, PrependMarker)
	}
	if strings.HasSuffix(name, AppendMarker) {
		rule.Append = true
		name = strings.TrimSuffix(name, AppendMarker)
	}
	rule.Name = strings.TrimSpace(name)
	return rule
}

// Load reads and validates the configuration document at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates a configuration document. path is used for issue
// references and to resolve relative build directories.
func Parse(data []byte, path string) (*Catalog, error) {
	cat, result := parse(data, path)
	if len(result.Issues) > 0 {
		return nil, &ConfigError{Result: result}
	}
	return cat, nil
}

// Validate reports every issue in the document at path without failing on
// them; only an empty path is an error.
func Validate(path string) (ValidationResult, error) {
	if strings.TrimSpace(path) == "" {
		return ValidationResult{}, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ValidationResult{
			Path:   path,
			Issues: []ValidationIssue{{Ref: docRef(path), Message: err.Error()}},
		}, nil
	}
	_, result := parse(data, path)
	return result, nil
}

func (c *Catalog) Path() string {
	return c.path
}

// ResolvePath makes p absolute relative to the directory holding the config file.
func (c *Catalog) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(c.dir, p))
}

func (c *Catalog) Bundles() []Bundle {
	return slices.Clone(c.bundles)
}

func (c *Catalog) BundleNames() []string {
	names := make([]string, 0, len(c.bundles))
	for _, b := range c.bundles {
		names = append(names, b.Name)
	}
	return names
}

func (c *Catalog) Bundle(name string) (Bundle, error) {
	i, ok := c.bundleIndex[name]
	if !ok {
		return Bundle{}, &UnresolvedReferenceError{Kind: RefBundle, Name: name}
	}
	return c.bundles[i], nil
}

func (c *Catalog) Repo(name string) (RepoInfo, error) {
	i, ok := c.repoIndex[name]
	if !ok {
		return RepoInfo{}, &UnresolvedReferenceError{Kind: RefRepo, Name: name}
	}
	return c.repos[i], nil
}

// Binaries returns every prebuilt binary in declaration order.
func (c *Catalog) Binaries() []Binary {
	return slices.Clone(c.binaries)
}

func (c *Catalog) Binary(name string) (Binary, error) {
	i, ok := c.binaryIndex[name]
	if !ok {
		return Binary{}, &UnresolvedReferenceError{Kind: RefBinary, Name: name}
	}
	return c.binaries[i], nil
}

// Owner returns the repository declaring a subproject.
func (c *Catalog) Owner(subproject string) (string, bool) {
	repo, ok := c.owners[subproject]
	return repo, ok
}

func docRef(path string) string {
	if strings.TrimSpace(path) == "" {
		return DefaultFileName
	}
	return filepath.Base(path)
}
