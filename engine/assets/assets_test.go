package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleOBJ = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "tri.obj"), []byte(triangleOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func TestAssetManagerIndexAndLoad(t *testing.T) {
	am := NewAssetManager()
	require.NoError(t, am.Initialize(writeAssets(t), false))
	defer am.Shutdown()

	assert.Equal(t, []string{"models/tri.obj"}, am.Paths())

	res, err := am.LoadAsset("models/tri.obj", resources.ResourceTypeMesh, nil)
	require.NoError(t, err)
	mesh := res.Data.(*renderer.MeshData)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)

	info, ok := am.Lookup("models/tri.obj")
	require.True(t, ok)
	assert.True(t, info.InUse)
	assert.False(t, info.LastLoaded.IsZero())

	am.ReleaseAll()
	info, _ = am.Lookup("models/tri.obj")
	assert.False(t, info.InUse)

	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)
}

func TestAssetManagerLoadErrors(t *testing.T) {
	am := NewAssetManager()
	require.NoError(t, am.Initialize(writeAssets(t), false))
	defer am.Shutdown()

	_, err := am.LoadAsset("models/missing.obj", resources.ResourceTypeMesh, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("models/tri.obj", resources.ResourceTypeImage, nil)
	assert.Error(t, err, "type mismatch")
	_, err = am.LoadAsset("builtin:teapot", resources.ResourceTypeMesh, nil)
	assert.Error(t, err)
	_, err = am.LoadAsset("builtin:quad", resources.ResourceTypeImage, nil)
	assert.Error(t, err)

	assert.Error(t, NewAssetManager().Initialize(filepath.Join(t.TempDir(), "nope"), false))
}

func TestAssetManagerBuiltins(t *testing.T) {
	am := NewAssetManager()

	quad, err := am.LoadAsset("builtin:quad", resources.ResourceTypeMesh, nil)
	require.NoError(t, err)
	assert.Len(t, quad.Data.(*renderer.MeshData).Vertices, 4)
	assert.Equal(t, "builtin:quad", quad.Name)

	checker, err := am.LoadAsset("builtin:checker", resources.ResourceTypeImage, nil)
	require.NoError(t, err)
	texture := checker.Data.(*renderer.TextureData)
	assert.Equal(t, uint32(4), texture.Width)
	assert.Equal(t, uint32(4), texture.Height)
	assert.NotEqual(t, quad.ID, checker.ID)
}

func TestDetermineAssetType(t *testing.T) {
	tests := map[string]resources.ResourceType{
		"shaders/texture.vert.spv": resources.ResourceTypeBinary,
		"textures/wood.PNG":        resources.ResourceTypeImage,
		"textures/wood.webp":       resources.ResourceTypeImage,
		"models/cube.obj":          resources.ResourceTypeMesh,
		"shaders/texture.vert":     resources.ResourceTypeNone,
	}
	for path, want := range tests {
		assert.Equal(t, want, determineAssetType(path), path)
	}
}

func TestAssetManagerWatchReportsChangesInUse(t *testing.T) {
	require.True(t, core.EventInitialize())
	defer core.EventShutdown()

	var (
		mu      sync.Mutex
		changed []string
	)
	listener := &struct{}{}
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, listener, func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, data.Data.C[0])
		return true
	})
	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), changed...)
	}

	dir := writeAssets(t)
	am := NewAssetManager()
	require.NoError(t, am.Initialize(dir, true))
	defer am.Shutdown()

	// New files are indexed but not reported.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "other.obj"), []byte(triangleOBJ), 0o644))
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("models/other.obj")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, seen())

	_, err := am.LoadAsset("models/tri.obj", resources.ResourceTypeMesh, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "tri.obj"), []byte(triangleOBJ+"\n"), 0o644))

	assert.Eventually(t, func() bool {
		for _, path := range seen() {
			if path == "models/tri.obj" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "models", "other.obj")))
	assert.Eventually(t, func() bool {
		_, ok := am.Lookup("models/other.obj")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, am.Shutdown())
	assert.NoError(t, am.Shutdown(), "shutting down twice is harmless")
}
