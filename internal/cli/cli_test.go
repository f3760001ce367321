package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
	"github.com/ManiVaultStudio/DevBundle/internal/domain/safety"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/archive"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/gitcmd"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/output"
	"github.com/ManiVaultStudio/DevBundle/internal/infra/settings"
)

const smalltestConfig = `
build_bundles:
  - name: smalltest
    build_dir: smalltest
    branch: master
    repos: [core, CsvLoader]
  - name: pluginsonly
    build_dir: plugins
    branch: develop
    repos: [CsvLoader]
repo_info:
  core:
    sub_project_dependencies:
      HDPS: []
      PointData: []
    binaries: [QT5152]
  CsvLoader:
    dependencies: [HDPS, PointData]
prebuilt_binaries:
  QT5152:
    url: https://example.com/qt.tgz
    cmake_variables:
      "@Qt5_DIR": lib/cmake/Qt5
    bin_path: bin
`

type fakeGit struct{ clones []string }

func (g *fakeGit) Clone(_ context.Context, _, _, dest string) error {
	g.clones = append(g.clones, filepath.Base(dest))
	return os.MkdirAll(dest, 0o755)
}

func (g *fakeGit) Checkout(context.Context, string, string) error { return nil }

func (g *fakeGit) Head(context.Context, string) (string, error) { return "abc1234", nil }

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, _, _, installDir string) (archive.Outcome, error) {
	return archive.Outcome{Downloaded: true, Unpacked: true}, os.MkdirAll(installDir, 0o755)
}

type fakeInspector struct{ dirty bool }

func (f fakeInspector) Inspect(context.Context, string) (safety.TreeState, error) {
	if f.dirty {
		return safety.TreeState{Dirty: true, Summary: "2 modified"}, nil
	}
	return safety.TreeState{Summary: "clean"}, nil
}

func testDeps() Deps {
	return Deps{
		Git:       &fakeGit{},
		Inspector: fakeInspector{},
		Fetcher:   fakeFetcher{},
		Status: func(context.Context, string) (gitcmd.Status, error) {
			return gitcmd.Status{Branch: "master", Head: "abc1234"}, nil
		},
	}
}

// writeConfig isolates settings from the environment and returns the path
// of a config file in a fresh directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(settings.EnvPrefix+"_SETTINGS_DIR", filepath.Join(dir, "settings"))
	for _, key := range []string{"CONFIG", "BINARIES_DIR", "SSH", "VERBOSE", "DEBUG"} {
		t.Setenv(settings.EnvPrefix+"_"+key, "")
		os.Unsetenv(settings.EnvPrefix + "_" + key)
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, deps Deps, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	deps.In = strings.NewReader("")
	deps.Out = &out
	deps.Err = &errOut
	root := NewRootCommand(deps)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	output.SetStepLogger(nil)
	return out.String(), errOut.String(), err
}

func TestListBundles(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "smalltest (2 repos, build dir smalltest)")
	assert.Contains(t, out, "pluginsonly (1 repos, build dir plugins)")
}

func TestListDescribesBundle(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "list", "smalltest")
	require.NoError(t, err)
	assert.Contains(t, out, "core (branch master)")
	assert.Contains(t, out, "subproject CsvLoader needs HDPS, PointData")
	assert.Contains(t, out, "QT5152")
	assert.Contains(t, out, filepath.Join(filepath.Dir(cfg), "smalltest"))
}

func TestListUnknownBundle(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	_, _, err := runCLI(t, testDeps(), "--config", cfg, "list", "nope")
	var unresolved *catalog.UnresolvedReferenceError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, catalog.RefBundle, unresolved.Kind)
}

func TestValidateReportsEveryIssue(t *testing.T) {
	broken := strings.Replace(smalltestConfig, "repos: [core, CsvLoader]", "repos: [core, Missing]", 1)
	cfg := writeConfig(t, broken)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "build_bundles[0].repos[1].repo")
	assert.Contains(t, out, `"Missing"`)
}

func TestValidateCleanConfig(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "no issues found")
}

func TestLoadErrorListsConfigIssues(t *testing.T) {
	broken := strings.Replace(smalltestConfig, "binaries: [QT5152]", "binaries: [QT9999]", 1)
	cfg := writeConfig(t, broken)
	_, errOut, err := runCLI(t, testDeps(), "--config", cfg, "plan", "smalltest")
	var cfgErr *catalog.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, errOut, "Config issues")
	assert.Contains(t, errOut, "repo_info.core.binaries[0]")
}

func TestPlanAcceptsUnderscoreFlags(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "plan", "smalltest", "--skip_binary", "QT5152")
	require.NoError(t, err)
	assert.Contains(t, out, "QT5152 (skipped)")
	assert.NotContains(t, out, "Qt5_DIR")
	assert.Contains(t, out, "1. HDPS (core)")
	assert.Contains(t, out, "3. CsvLoader (CsvLoader)")
	assert.Contains(t, out, "https://github.com/ManiVaultStudio/core")
}

func TestPlanOverridesAndCMakePreview(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "plan", "smalltest",
		"--var", "Qt5_DIR=/opt/qt", "--ssh", "--cmake")
	require.NoError(t, err)
	assert.Contains(t, out, "Qt5_DIR (override)")
	assert.Contains(t, out, `set(Qt5_DIR "/opt/qt" CACHE STRING "" FORCE)`)
	assert.Contains(t, out, "git@github.com:ManiVaultStudio/core.git")
	assert.Contains(t, out, "add_dependencies(CsvLoader HDPS PointData)")
}

func TestPlanRejectsMalformedOverride(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	_, _, err := runCLI(t, testDeps(), "--config", cfg, "plan", "smalltest", "--var", "novalue")
	assert.ErrorContains(t, err, "NAME=VALUE")
}

func TestUseDevelopThenStatus(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	deps := testDeps()
	out, _, err := runCLI(t, deps, "--config", cfg, "use", "smalltest", "--mode", "develop")
	require.NoError(t, err)
	assert.Contains(t, out, "clone core (master)")
	assert.Contains(t, out, "bundle smalltest ready in")
	assert.Equal(t, []string{"core", "CsvLoader"}, deps.Git.(*fakeGit).clones)

	root := filepath.Join(filepath.Dir(cfg), "smalltest")
	assert.FileExists(t, filepath.Join(root, "source", "CMakeLists.txt"))

	out, _, err = runCLI(t, deps, "--config", cfg, "status", "smalltest")
	require.NoError(t, err)
	assert.Contains(t, out, "mode: develop")
	assert.Contains(t, out, "core (master@abc1234, clean)")
	assert.Contains(t, out, "QT5152 (")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	out, _, err := runCLI(t, testDeps(), "--config", cfg, "status", "smalltest")
	require.NoError(t, err)
	assert.Contains(t, out, "never materialized")
	assert.Contains(t, out, "core missing")
	assert.Contains(t, out, "QT5152 not unpacked")
}

func TestUseCleanNeedsYesWithoutTerminal(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	coreDir := filepath.Join(filepath.Dir(cfg), "smalltest", "source", "core")
	require.NoError(t, os.MkdirAll(coreDir, 0o755))

	deps := testDeps()
	_, _, err := runCLI(t, deps, "--config", cfg, "use", "smalltest")
	assert.ErrorContains(t, err, "--yes")
	assert.DirExists(t, coreDir)
	assert.Empty(t, deps.Git.(*fakeGit).clones)

	_, _, err = runCLI(t, deps, "--config", cfg, "use", "smalltest", "--yes")
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "CsvLoader"}, deps.Git.(*fakeGit).clones)
}

func TestUseCleanRefusesDirtyRepos(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	coreDir := filepath.Join(filepath.Dir(cfg), "smalltest", "source", "core")
	require.NoError(t, os.MkdirAll(coreDir, 0o755))

	deps := testDeps()
	deps.Inspector = fakeInspector{dirty: true}
	_, errOut, err := runCLI(t, deps, "--config", cfg, "use", "smalltest", "--yes")
	var dirty *safety.DirtyWorkingTreeError
	require.ErrorAs(t, err, &dirty)
	assert.Contains(t, errOut, "Uncommitted changes")
	assert.Contains(t, errOut, coreDir+" (2 modified)")
	assert.DirExists(t, coreDir)
}

func TestUseRejectsUnknownMode(t *testing.T) {
	cfg := writeConfig(t, smalltestConfig)
	_, _, err := runCLI(t, testDeps(), "--config", cfg, "use", "smalltest", "--mode", "force")
	assert.ErrorContains(t, err, "unknown mode")
}

func TestVersionString(t *testing.T) {
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origBuildDate })

	Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-10-16"
	assert.Equal(t, "v0.3.0 (commit: abc1234, built: 2026-10-16)", VersionString())
	Version = "dev"
	assert.Equal(t, "dev (built from source)", VersionString())
}
