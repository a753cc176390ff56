package pakstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildManifest(t *testing.T) {
	t.Parallel()

	files := []string{
		"Engine/Content/Maps/a.umap",
		"Engine/Content/Maps/a.umap.bak",
		"Engine/Content/Props/B.UASSET",
		"Engine/Content/Props/b.uasset",
		"Engine/Content/Readme.txt",
	}
	exts := []string{".uasset", ".umap"}

	tests := []struct {
		name       string
		mountPoint string
		normalize  Normalizer
		want       Manifest
	}{
		{
			name:       "identity",
			mountPoint: "Engine/Content",
			normalize:  IdentityNormalizer,
			want: Manifest{
				"Engine/Content/Maps/a.umap",
				"Engine/Content/Props/B.UASSET",
				"Engine/Content/Props/b.uasset",
			},
		},
		{
			name:       "nil normalizer is identity",
			mountPoint: "Engine/Content",
			want: Manifest{
				"Engine/Content/Maps/a.umap",
				"Engine/Content/Props/B.UASSET",
				"Engine/Content/Props/b.uasset",
			},
		},
		{
			name:       "strip mount point",
			mountPoint: "/Engine/Content/",
			normalize:  StripMountPoint,
			want:       Manifest{"Maps/a.umap", "Props/B.UASSET", "Props/b.uasset"},
		},
		{
			name:       "collapsing normalizer keeps first",
			mountPoint: "Engine/Content",
			normalize:  func(_, _ string) string { return "same" },
			want:       Manifest{"same"},
		},
		{
			name:       "empty result drops path",
			mountPoint: "Engine/Content",
			normalize:  func(_, _ string) string { return "" },
			want:       Manifest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, mounted := buildManifest(files, tt.mountPoint, exts, tt.normalize)
			assert.Equal(t, tt.want, got)
			assert.Len(t, mounted, len(got))
		})
	}
}

func TestBuildManifestKeepsMountedPaths(t *testing.T) {
	t.Parallel()

	files := []string{
		"Engine/Content/Maps/a.umap",
		"Engine/Content/Props/b.uasset",
		"Engine/Content/Docs/c.txt",
	}
	got, mounted := buildManifest(files, "Engine/Content", []string{".uasset", ".umap"}, StripMountPoint)
	assert.Equal(t, Manifest{"Maps/a.umap", "Props/b.uasset"}, got)
	assert.Equal(t, []string{"Engine/Content/Maps/a.umap", "Engine/Content/Props/b.uasset"}, mounted)
}

func TestStripMountPoint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.umap", StripMountPoint("Engine/Content", "Engine/Content/a.umap"))
	assert.Equal(t, "Other/a.umap", StripMountPoint("Engine/Content", "Other/a.umap"))
	assert.Equal(t, "Engine/ContentX/a.umap", StripMountPoint("Engine/Content", "Engine/ContentX/a.umap"))
	assert.Equal(t, "a.umap", StripMountPoint("", "a.umap"))
}

func TestManifestClone(t *testing.T) {
	t.Parallel()

	var empty Manifest
	assert.Nil(t, empty.Clone())

	m := Manifest{"a.umap"}
	c := m.Clone()
	c[0] = "b.umap"
	assert.Equal(t, "a.umap", m[0])
	assert.True(t, m.Contains("a.umap"))
	assert.False(t, m.Contains("b.umap"))
}

func TestListenerFuncs(t *testing.T) {
	t.Parallel()

	var got Manifest
	completed := false
	l := ListenerFuncs{
		Prepare:  func(m Manifest) { got = m },
		Complete: func() { completed = true },
	}
	l.OnPrepareAssetStreaming(Manifest{"a.umap"})
	l.OnAssetStreamComplete()
	assert.Equal(t, Manifest{"a.umap"}, got)
	assert.True(t, completed)

	assert.NotPanics(t, func() {
		ListenerFuncs{}.OnPrepareAssetStreaming(nil)
		ListenerFuncs{}.OnAssetStreamComplete()
		LogListener{}.OnPrepareAssetStreaming(Manifest{"a.umap"})
		LogListener{}.OnAssetStreamComplete()
	})
}
