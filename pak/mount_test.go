package pak_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak"
	"github.com/meigma/pakstream/pak/paktest"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", "."},
		{"/", "."},
		{"/Engine/Content/", "Engine/Content"},
		{"Engine//Content", "Engine/Content"},
		{"../x", "../x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pak.NormalizePath(tt.in), tt.in)
	}
}

func TestSetMountPoint(t *testing.T) {
	t.Parallel()

	p := paktest.Open(t, map[string][]byte{"a.umap": nil})
	assert.Equal(t, "", p.MountPoint())

	require.NoError(t, p.SetMountPoint("/Engine/Content/"))
	assert.Equal(t, "Engine/Content", p.MountPoint())

	require.ErrorIs(t, p.SetMountPoint("../bad"), pak.ErrInvalidMountPoint)
	require.ErrorIs(t, p.SetMountPoint("Engine/./Content"), pak.ErrInvalidMountPoint)
	assert.Equal(t, "Engine/Content", p.MountPoint(), "failed set keeps the previous mount point")

	require.NoError(t, p.SetMountPoint("/"))
	assert.Equal(t, "", p.MountPoint())
}

func TestMounted(t *testing.T) {
	t.Parallel()

	p := paktest.Open(t, map[string][]byte{"a.umap": nil}, pak.WithMountPoint("Engine/Content"))

	rel, ok := p.Mounted("Engine/Content/Maps/a.umap")
	require.True(t, ok)
	assert.Equal(t, "Maps/a.umap", rel)

	rel, ok = p.Mounted("/Engine/Content")
	require.True(t, ok)
	assert.Equal(t, ".", rel)

	_, ok = p.Mounted("Engine/ContentX/a.umap")
	assert.False(t, ok)
	_, ok = p.Mounted("Game/a.umap")
	assert.False(t, ok)

	assert.Equal(t, "Engine/Content/a.umap", p.MountedPath("a.umap"))
}

func TestFindFiles(t *testing.T) {
	t.Parallel()

	p := paktest.Open(t, map[string][]byte{
		"a.umap":        nil,
		"b.uasset":      nil,
		"c.txt":         nil,
		"Sub/d.uasset":  nil,
		"Sub/Deep/e.ma": nil,
	}, pak.WithMountPoint("Engine/Content"))

	all := []string{
		"Engine/Content/Sub/Deep/e.ma",
		"Engine/Content/Sub/d.uasset",
		"Engine/Content/a.umap",
		"Engine/Content/b.uasset",
		"Engine/Content/c.txt",
	}

	tests := []struct {
		name      string
		dir       string
		recursive bool
		want      []string
	}{
		{"mount point recursive", "Engine/Content", true, all},
		{"mount point flat", "Engine/Content", false, []string{
			"Engine/Content/a.umap",
			"Engine/Content/b.uasset",
			"Engine/Content/c.txt",
		}},
		{"subdir", "/Engine/Content/Sub/", false, []string{"Engine/Content/Sub/d.uasset"}},
		{"ancestor recursive", "Engine", true, all},
		{"root recursive", "/", true, all},
		{"ancestor flat", "Engine", false, nil},
		{"unrelated", "Game", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.FindFiles(tt.dir, tt.recursive))
		})
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	assert.True(t, pak.Overlaps("Engine/Content", "Engine/Content"))
	assert.True(t, pak.Overlaps("Engine", "Engine/Content"))
	assert.True(t, pak.Overlaps("", "Game"))
	assert.False(t, pak.Overlaps("Engine/Content", "Engine/ContentX"))
	assert.False(t, pak.Overlaps("Engine/Content", "Game/Content"))
}
