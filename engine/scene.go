package engine

import (
	"fmt"

	"github.com/spaghettifunk/texture-renderer/engine/assets"
	"github.com/spaghettifunk/texture-renderer/engine/assets/loaders"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/renderer/components"
	"github.com/spaghettifunk/texture-renderer/engine/resources"
)

func NewCameraFromConfig(cfg CameraConfig) *components.Camera {
	return components.NewCamera(
		math.NewVec3(cfg.Position[0], cfg.Position[1], cfg.Position[2]),
		math.NewVec3(cfg.Target[0], cfg.Target[1], cfg.Target[2]),
		cfg.FOV, cfg.Near, cfg.Far)
}

func NewTransformFromConfig(cfg SceneConfig) *math.Transform {
	return math.TransformFromPositionRotationScale(
		math.NewVec3(cfg.Position[0], cfg.Position[1], cfg.Position[2]),
		math.NewQuatIdentity(),
		math.NewVec3(cfg.Scale[0], cfg.Scale[1], cfg.Scale[2]))
}

// LoadSceneData loads the mesh, texture and shaders named by cfg in parallel on jobs.
// Only these assets stay marked as in use, so only they trigger a reload when they change
// on disk.
func LoadSceneData(am *assets.AssetManager, jobs *core.JobSystem, cfg SceneConfig, camera *components.Camera) (*renderer.SceneData, error) {
	am.ReleaseAll()

	var (
		mesh     *renderer.MeshData
		texture  *renderer.TextureData
		vertex   []uint32
		fragment []uint32
	)
	err := jobs.RunAll(
		func() (err error) {
			mesh, err = loadAsset[*renderer.MeshData](am, cfg.Mesh, resources.ResourceTypeMesh, nil)
			return err
		},
		func() (err error) {
			texture, err = loadAsset[*renderer.TextureData](am, cfg.Texture, resources.ResourceTypeImage,
				&loaders.ImageResourceParams{FlipY: cfg.FlipTexture})
			return err
		},
		func() (err error) {
			vertex, err = loadAsset[[]uint32](am, cfg.VertexShader, resources.ResourceTypeBinary, nil)
			return err
		},
		func() (err error) {
			fragment, err = loadAsset[[]uint32](am, cfg.FragmentShader, resources.ResourceTypeBinary, nil)
			return err
		},
	)
	if err != nil {
		return nil, err
	}

	core.LogDebug("Scene assets loaded: mesh %q (%d vertices), texture %q %dx%d.",
		mesh.Name, len(mesh.Vertices), texture.Name, texture.Width, texture.Height)

	return &renderer.SceneData{
		Meshes:        []renderer.MeshData{*mesh},
		Texture:       *texture,
		Shader:        renderer.ShaderData{Vertex: vertex, Fragment: fragment},
		Camera:        camera,
		Transform:     NewTransformFromConfig(cfg),
		RotationSpeed: cfg.RotationSpeed,
	}, nil
}

func loadAsset[T any](am *assets.AssetManager, name string, resourceType resources.ResourceType, params interface{}) (T, error) {
	var data T
	res, err := am.LoadAsset(name, resourceType, params)
	if err != nil {
		return data, fmt.Errorf("failed to load %s asset %q: %w", resourceType, name, err)
	}
	data, ok := res.Data.(T)
	if !ok {
		return data, fmt.Errorf("asset %q holds %T, expected %T", name, res.Data, data)
	}
	// The data outlives the resource, the renderer uploads it.
	if err := am.UnloadAsset(res); err != nil {
		core.LogWarn("failed to unload asset %q: %s", name, err)
	}
	return data, nil
}
