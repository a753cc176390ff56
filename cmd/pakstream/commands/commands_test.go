package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestPackLsStream(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	src := filepath.Join(work, "src")
	content := filepath.Join(work, "content")
	writeContent(t, src, map[string]string{
		"Maps/Level01.umap":  "map",
		"Props/Tree.uasset":  strings.Repeat("tree", 100),
		"Docs/Readme.txt":    "docs",
		"Props/Rock.uasset":  "rock",
		"Audio/Wind.wem":     "wind",
		"Config/Default.ini": "[Game]",
	})

	prefix := filepath.Join(work, "release")
	out, err := run(t, "keygen", prefix)
	require.NoError(t, err)
	assert.Contains(t, out, "release.key")

	archive := filepath.Join(content, "Level01.pak")
	out, err = run(t, "pack", src, archive, "--sign-key", prefix+".key")
	require.NoError(t, err)
	assert.Contains(t, out, "6 files")
	assert.Contains(t, out, "signed=true")

	out, err = run(t, "ls", archive, "--signed", "--trusted-key", prefix+".pub", "--verify", "--mount-point", "Engine/Content")
	require.NoError(t, err)
	assert.Contains(t, out, "Engine/Content/Maps/Level01.umap")
	assert.Contains(t, out, "6 entries, signed=true")

	cfgFile := filepath.Join(work, "pakstream.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf(`
[AssetStreamer]
ContentDir = %q
bSigned = true
TrustedKeys = [%q]

[Logging]
Level = "error"
`, content, prefix+".pub")), 0o600))

	out, err = run(t, "--config", cfgFile, "stream", "Level01", "--wait", "--strip-mount-point")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"Maps/Level01.umap", "Props/Rock.uasset", "Props/Tree.uasset"}, lines[:3])
	assert.Contains(t, lines[3], "loaded 3/3 assets")
}

func TestStreamMissingArchive(t *testing.T) {
	t.Parallel()

	cfgFile := filepath.Join(t.TempDir(), "pakstream.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf("assetstreamer:\n  contentdir: %q\nlogging:\n  level: error\n", t.TempDir())), 0o600))

	_, err := run(t, "--config", cfgFile, "stream", "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive not found")
}

func TestStreamRejectsBadMode(t *testing.T) {
	t.Parallel()

	_, err := run(t, "--log-level", "error", "stream", "Level01", "--mode", "carrier-pigeon")
	require.Error(t, err)
}

func TestLogFlagsValidated(t *testing.T) {
	t.Parallel()

	_, err := run(t, "--log-level", "chatty", "keygen", filepath.Join(t.TempDir(), "k"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	t.Parallel()

	prefix := filepath.Join(t.TempDir(), "k")
	_, err := run(t, "keygen", prefix)
	require.NoError(t, err)
	_, err = run(t, "keygen", prefix)
	require.Error(t, err)
	_, err = run(t, "keygen", prefix, "--force")
	require.NoError(t, err)
}

func TestPackRejectsUnknownCompression(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := run(t, "pack", dir, filepath.Join(dir, "out.pak"), "--compression", "lz4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown compression")
}
