package buildorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManiVaultStudio/DevBundle/internal/domain/catalog"
)

const config = `
build_bundles:
  - name: smalltest
    build_dir: out
    repos: [core, CsvLoader]
  - name: reversed
    build_dir: out
    repos: [CsvLoader, core]
  - name: partial
    build_dir: out
    repos: [CsvLoader, Extra]
  - name: loop
    build_dir: out
    repos: [A, B, C]
repo_info:
  core:
    sub_project_dependencies:
      HDPS: []
      PointData: [HDPS]
  CsvLoader:
    dependencies: [HDPS, PointData]
  Extra:
    dependencies: [CsvLoader]
  A:
    dependencies: [B]
  B:
    dependencies: [A]
  C:
    dependencies: [B]
`

func load(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(config), "config.yaml")
	require.NoError(t, err)
	return cat
}

func resolve(t *testing.T, cat *catalog.Catalog, bundle string) ([]Step, error) {
	t.Helper()
	b, err := cat.Bundle(bundle)
	require.NoError(t, err)
	return Resolve(b, cat)
}

func subprojects(steps []Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Subproject)
	}
	return out
}

func TestResolveSmalltest(t *testing.T) {
	cat := load(t)
	steps, err := resolve(t, cat, "smalltest")
	require.NoError(t, err)

	assert.Equal(t, []string{"HDPS", "PointData", "CsvLoader"}, subprojects(steps))
	assert.Equal(t, Step{Repo: "CsvLoader", Subproject: "CsvLoader", Dependencies: []string{"HDPS", "PointData"}}, steps[2])
	assert.Equal(t, []string{"core", "CsvLoader"}, RepoOrder(steps))
}

func TestResolveIsDeterministic(t *testing.T) {
	cat := load(t)
	first, err := resolve(t, cat, "smalltest")
	require.NoError(t, err)
	for range 50 {
		again, err := resolve(t, cat, "smalltest")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveRespectsDependenciesOverBundleOrder(t *testing.T) {
	steps, err := resolve(t, load(t), "reversed")
	require.NoError(t, err)
	assert.Equal(t, []string{"HDPS", "PointData", "CsvLoader"}, subprojects(steps))
	assert.Equal(t, []string{"core", "CsvLoader"}, RepoOrder(steps))
}

func TestResolveReportsExternalDependencies(t *testing.T) {
	steps, err := resolve(t, load(t), "partial")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "CsvLoader", steps[0].Subproject)
	assert.Empty(t, steps[0].Dependencies)
	assert.Equal(t, []string{"HDPS", "PointData"}, steps[0].External)
	assert.Equal(t, []string{"CsvLoader"}, steps[1].Dependencies)
}

func TestResolveCycle(t *testing.T) {
	steps, err := resolve(t, load(t), "loop")
	assert.Nil(t, steps)

	var cycleErr *CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"A", "B"}, cycleErr.Nodes)
}

func TestResolveUnknownRepo(t *testing.T) {
	_, err := Resolve(catalog.Bundle{Name: "x", Repos: []catalog.RepoRef{{Repo: "ghost"}}}, load(t))
	var refErr *catalog.UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "ghost", refErr.Name)
}
