package staterecord

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := Record{
		Bundle:    "smalltest",
		Mode:      "clean",
		Config:    "/work/config.json",
		AppliedAt: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
		Platform:  "Linux",
		CMakeFile: "/work/smalltest/source/CMakeLists.txt",
		Repos: []Repo{
			{Name: "core", Branch: "master", Dir: "/work/smalltest/source/core", URL: "https://github.com/ManiVaultStudio/core", Head: "abc1234"},
			{Name: "CsvLoader", Branch: "master", Dir: "/mine/CsvLoader", Local: true},
		},
		Skipped:    []string{"QT5152"},
		BuildOrder: []string{"HDPS", "PointData", "CsvLoader"},
	}
	require.NoError(t, Save(dir, rec))

	got, ok, err := Load(dir)
	require.NoError(t, err)
	require.True(t, ok)
	rec.Version = Version
	assert.Equal(t, rec, got)
	assert.NoFileExists(t, Path(dir)+".tmp")
}

func TestLoadMissing(t *testing.T) {
	_, ok, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Record{Version: Version + 1, Bundle: "x"}))
	_, _, err := Load(dir)
	assert.ErrorContains(t, err, "newer")
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, Record{Bundle: "x"}))
	require.NoError(t, os.WriteFile(Path(dir), []byte("bundle = ["), 0o644))
	_, _, err := Load(dir)
	assert.Error(t, err)
}
