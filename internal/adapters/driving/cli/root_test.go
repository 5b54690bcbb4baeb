package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/adapters/driven/config/file"
)

// execute runs the root command with args and returns its output.
// Flag variables are reset first because cobra keeps them between runs.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, verbose, logFile = "", false, ""
	syncFull, syncReset = false, false
	searchLimit, searchJSON, searchTypes = 10, false, nil
	statusHistory = 5

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// writeConfig writes a config for a local directory source whose state
// lives under a temp directory, and returns its path and the items dir.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	root := t.TempDir()
	items := filepath.Join(root, "items")
	require.NoError(t, os.MkdirAll(items, 0755))

	body := `
[source]
type = "localdir"
dir = "` + filepath.ToSlash(items) + `"

[storage]
data_dir = "` + filepath.ToSlash(filepath.Join(root, "data")) + `"
` + extra

	path := filepath.Join(root, file.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path, items
}

func writeItem(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0644))
}

func TestRootCmd_LoadsConfigFile(t *testing.T) {
	path, items := writeConfig(t, "[trigger]\ndelay = \"5s\"\n")

	_, err := execute(t, "status", "--config", path)
	require.NoError(t, err)

	require.NotNil(t, cfg)
	require.Equal(t, file.SourceLocalDir, cfg.Source.Type)
	require.Equal(t, filepath.ToSlash(items), cfg.Source.Dir)
	require.Equal(t, "5s", cfg.Trigger.Delay.String())
}

func TestRootCmd_EnvOverridesFile(t *testing.T) {
	path, _ := writeConfig(t, "")
	t.Setenv("INDEXSYNC_BATCH_SIZE", "7")

	_, err := execute(t, "status", "--config", path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Index.BatchSize)
}

func TestRootCmd_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.FileName)
	require.NoError(t, os.WriteFile(path, []byte("[source\n"), 0600))

	_, err := execute(t, "status", "--config", path)
	require.Error(t, err)
}

func TestRootCmd_InvalidConfigValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), file.FileName)
	require.NoError(t, os.WriteFile(path, []byte("[source]\ntype = \"contentful\"\n"), 0600))
	t.Setenv("INDEXSYNC_SPACE_ID", "")
	t.Setenv("INDEXSYNC_ACCESS_TOKEN", "")

	_, err := execute(t, "sync", "--config", path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "source.space"), err.Error())
}
