package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smalltestYAML = `
build_bundles:
  - name: smalltest
    build_dir: ../smalltest
    branch: master
    repos:
      - repo: core
      - repo: PointData
        branch: feature/x
      - repo: CsvLoader
        local: /src/CsvLoader
repo_info:
  core:
    sub_project_dependencies:
      HDPS: []
    binaries: [QT5152]
  PointData:
    dependencies: [HDPS]
  CsvLoader:
    dependencies: [HDPS, PointData]
prebuilt_binaries:
  QT5152:
    binaries:
      Windows: https://example.com/qt-win.tgz
      Linux: https://example.com/qt-linux.tar.xz
    cmake_variables:
      "@Qt5_DIR": lib/cmake/Qt5
      "CMAKE_PREFIX_PATH+": "${BINARY_ROOT}/lib/cmake"
    bin_path: bin
`

func TestParseSmalltest(t *testing.T) {
	cat, err := Parse([]byte(smalltestYAML), "/work/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"smalltest"}, cat.BundleNames())
	bundle, err := cat.Bundle("smalltest")
	require.NoError(t, err)
	assert.Equal(t, "../smalltest", bundle.BuildDir)
	require.Len(t, bundle.Repos, 3)
	assert.Equal(t, RepoRef{Repo: "core", Branch: "master"}, bundle.Repos[0])
	assert.Equal(t, "feature/x", bundle.Repos[1].Branch)
	assert.True(t, bundle.Repos[2].IsLocal())
	assert.Equal(t, "master", bundle.Repos[2].Branch)

	core, err := cat.Repo("core")
	require.NoError(t, err)
	assert.Equal(t, []Subproject{{Name: "HDPS"}}, core.Subprojects)
	assert.Equal(t, []string{"QT5152"}, core.Binaries)

	csv, err := cat.Repo("CsvLoader")
	require.NoError(t, err)
	assert.Equal(t, []Subproject{{Name: "CsvLoader", Dependencies: []string{"HDPS", "PointData"}}}, csv.Subprojects)

	owner, ok := cat.Owner("HDPS")
	assert.True(t, ok)
	assert.Equal(t, "core", owner)

	qt, err := cat.Binary("QT5152")
	require.NoError(t, err)
	assert.Equal(t, "bin", qt.BinPath)
	assert.Equal(t, []VariableRule{
		{Name: "Qt5_DIR", Value: "lib/cmake/Qt5", Prepend: true},
		{Name: "CMAKE_PREFIX_PATH", Value: "${BINARY_ROOT}/lib/cmake", Append: true},
	}, qt.Variables)
	url, ok := qt.LocatorFor("Linux")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/qt-linux.tar.xz", url)
	_, ok = qt.LocatorFor("Macos")
	assert.False(t, ok)

	assert.Equal(t, filepath.Clean("/smalltest"), cat.ResolvePath(bundle.BuildDir))
}

func TestParseJSONWithLegacyKeys(t *testing.T) {
	doc := `{
  "build_bundles": [
    {"name": "b", "build_dir": "out", "hdps_repos": ["core", {"repo": "Extra", "branch": "dev"}]}
  ],
  "repo_info": [
    {"name": "core", "sub_project_dependencies": {"HDPS": [], "Util": ["HDPS"]}},
    {"name": "Extra"}
  ],
  "prebuilt_binaries": {}
}`
	cat, err := Parse([]byte(doc), "config.json")
	require.NoError(t, err)

	bundle, err := cat.Bundle("b")
	require.NoError(t, err)
	assert.Equal(t, []RepoRef{{Repo: "core"}, {Repo: "Extra", Branch: "dev"}}, bundle.Repos)

	extra, err := cat.Repo("Extra")
	require.NoError(t, err)
	assert.Equal(t, []Subproject{{Name: "Extra"}}, extra.Subprojects)

	core, err := cat.Repo("core")
	require.NoError(t, err)
	require.Len(t, core.Subprojects, 2)
	assert.Equal(t, "Util", core.Subprojects[1].Name)
	assert.Equal(t, []string{"HDPS"}, core.Subprojects[1].Dependencies)
}

func TestParseRejectsUnknownRepo(t *testing.T) {
	doc := `
build_bundles:
  - name: b
    build_dir: out
    repos: [core, Missing]
repo_info:
  core: {}
`
	_, err := Parse([]byte(doc), "config.yaml")
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Len(t, cfgErr.Result.Issues, 1)
	assert.Equal(t, "build_bundles[0].repos[1].repo", cfgErr.Result.Issues[0].Ref)

	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, RefRepo, refErr.Kind)
	assert.Equal(t, "Missing", refErr.Name)
}

func TestUnknownRepoRefPointsAtDocumentEntry(t *testing.T) {
	doc := `
build_bundles:
  - {build_dir: x, repos: [core]}
  - name: b
    build_dir: out
    hdps_repos: [core, core, ghost]
repo_info:
  core: {}
`
	_, result := parse([]byte(doc), "config.yaml")

	refs := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		refs = append(refs, issue.Ref)
	}
	assert.Equal(t, []string{
		"build_bundles[0].name",
		"build_bundles[1].hdps_repos[1].repo",
		"build_bundles[1].hdps_repos[2].repo",
	}, refs)

	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, result.Issues[2].Err, &refErr)
	assert.Equal(t, "ghost", refErr.Name)
	assert.Equal(t, "build_bundles[1].hdps_repos[2].repo", refErr.Ref)
}

func TestParseRejectsUnknownBinary(t *testing.T) {
	doc := `
build_bundles:
  - {name: b, build_dir: out, repos: [core]}
repo_info:
  core:
    binaries: [QT5152]
`
	_, err := Parse([]byte(doc), "config.yaml")
	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, RefBinary, refErr.Kind)
	assert.Equal(t, "repo_info.core.binaries[0]", refErr.Ref)
}

func TestParseIssues(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		ref  string
	}{
		{
			name: "unknown dependency",
			doc: `
build_bundles: []
repo_info:
  a:
    dependencies: [Nope]
`,
			ref: "repo_info.a.dependencies",
		},
		{
			name: "ambiguous subproject",
			doc: `
build_bundles: []
repo_info:
  a:
    sub_project_dependencies: {Shared: []}
  b:
    sub_project_dependencies: {Shared: []}
`,
			ref: "repo_info.b.sub_project_dependencies.Shared",
		},
		{
			name: "missing build_dir",
			doc: `
build_bundles:
  - {name: b, repos: []}
repo_info: {}
`,
			ref: "build_bundles[0].build_dir",
		},
		{
			name: "duplicate bundle",
			doc: `
build_bundles:
  - {name: b, build_dir: x, repos: []}
  - {name: b, build_dir: y, repos: []}
repo_info: {}
`,
			ref: "build_bundles[1].name",
		},
		{
			name: "duplicate repo in bundle",
			doc: `
build_bundles:
  - {name: b, build_dir: x, repos: [a, a]}
repo_info: {a: {}}
`,
			ref: "build_bundles[0].repos[1].repo",
		},
		{
			name: "missing repo_info",
			doc: `
build_bundles: []
`,
			ref: "repo_info",
		},
		{
			name: "unknown platform",
			doc: `
build_bundles: []
repo_info: {}
prebuilt_binaries:
  X:
    binaries: {Amiga: https://example.com/x.tgz}
`,
			ref: "prebuilt_binaries.X.binaries.Amiga",
		},
		{
			name: "empty variable name",
			doc: `
build_bundles: []
repo_info: {}
prebuilt_binaries:
  X:
    url: https://example.com/x.tgz
    cmake_variables: {"@+": lib}
`,
			ref: "prebuilt_binaries.X.cmake_variables.@+",
		},
		{
			name: "not a mapping",
			doc:  `- a`,
			ref:  "config.yaml",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), "config.yaml")
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			refs := make([]string, 0, len(cfgErr.Result.Issues))
			for _, issue := range cfgErr.Result.Issues {
				refs = append(refs, issue.Ref)
			}
			assert.Contains(t, refs, tc.ref)
		})
	}
}

func TestConfigErrorMessageNamesFirstIssue(t *testing.T) {
	err := &ConfigError{Result: ValidationResult{Issues: []ValidationIssue{
		{Ref: "repo_info.a", Message: "bad"},
		{Ref: "repo_info.b", Message: "worse"},
	}}}
	assert.Equal(t, "invalid config: repo_info.a: bad (and 1 more)", err.Error())
}

func TestBundleLookupUnknown(t *testing.T) {
	cat, err := Parse([]byte(smalltestYAML), "config.yaml")
	require.NoError(t, err)

	_, err = cat.Bundle("nope")
	var refErr *UnresolvedReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, RefBundle, refErr.Kind)
	assert.Equal(t, `bundle "nope" not found in build_bundles`, err.Error())
}

func TestValidateReportsWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build_bundles: []\nrepo_info:\n  a:\n    dependencies: [x]\n"), 0o644))

	result, err := Validate(path)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "repo_info.a.dependencies", result.Issues[0].Ref)

	result, err = Validate(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "missing.yaml", result.Issues[0].Ref)
}

func TestParseVariableName(t *testing.T) {
	cases := map[string]VariableRule{
		"Qt5_DIR":       {Name: "Qt5_DIR"},
		"PATHS+":        {Name: "PATHS", Append: true},
		"@Qt5_DIR":      {Name: "Qt5_DIR", Prepend: true},
		"@PREFIX_PATH+": {Name: "PREFIX_PATH", Append: true, Prepend: true},
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseVariableName(raw), raw)
	}
}
