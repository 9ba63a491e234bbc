package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

var _ renderer.RenderCore = (*TextureRenderer)(nil)

// TextureRenderer draws a textured scene on top of the swapchain a backend shares
// through a SwapchainContext. It alone owns the scene, the texture and every object
// built from them.
type TextureRenderer struct {
	ctx     *SwapchainContext
	device  Device
	options renderer.Options
	config  PipelineConfig
	clear   ClearValues

	layout    *DescriptorLayout
	scene     *Scene
	texture   *Texture
	pipelines *PipelineSet
	pool      *DescriptorPool
	sets      []vk.DescriptorSet
	sequences *CommandSequences

	uniforms  *UniformUpdater
	submitter *FrameSubmitter

	wireframe bool

	// Released in reverse: pipeline objects, then scene objects, then the layout.
	layoutRelease   releaseStack
	sceneRelease    releaseStack
	pipelineRelease releaseStack
}

func NewTextureRenderer(ctx *SwapchainContext, options renderer.Options) *TextureRenderer {
	return &TextureRenderer{
		ctx:       ctx,
		options:   options,
		clear:     DefaultClearValues(options.ClearColor),
		wireframe: options.Wireframe,
	}
}

func (r *TextureRenderer) Initialize() error {
	if err := r.ctx.Validate(); err != nil {
		return err
	}
	r.device = r.ctx.Device

	topology, err := TopologyFromName(r.options.Topology)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSetupFailed, err)
	}
	r.config = DefaultPipelineConfig(topology)

	layout, err := BuildDescriptorLayout(r.device)
	if err != nil {
		return err
	}
	r.layout = layout
	r.layoutRelease.push("descriptor layout", func() { layout.Destroy(r.device) })

	r.submitter = NewFrameSubmitter(r.device, r.ctx)
	core.LogInfo("Texture renderer initialized: %d frames in flight, %d swapchain images.",
		r.ctx.FramesInFlight, r.ctx.ImageCount())
	return nil
}

// BuildScene uploads the meshes, shaders and texture of data, replacing the current
// scene. Pipelines must be built again afterwards.
func (r *TextureRenderer) BuildScene(data *renderer.SceneData) error {
	if r.layout == nil {
		return core.ErrNotInitialized
	}
	if r.scene != nil || r.pipelines != nil {
		if err := r.device.WaitIdle(); err != nil {
			return err
		}
		r.releasePipeline()
		r.releaseScene()
	}

	scene, err := NewScene(r.device, data, r.ctx.FramesInFlight, &r.sceneRelease)
	if err != nil {
		r.sceneRelease.unwind()
		return err
	}

	texture, err := NewTexture(r.device, data.Texture, r.options.MaxAnisotropy)
	if err != nil {
		r.sceneRelease.unwind()
		return setupError(fmt.Sprintf("texture %q", data.Texture.Name), err)
	}
	r.sceneRelease.push("texture "+data.Texture.Name, func() { texture.Destroy(r.device) })

	scene.SetWireframe(r.wireframe)
	r.scene = scene
	r.texture = texture
	r.uniforms = NewUniformUpdater(r.device, scene, func() vk.Extent2D { return r.ctx.Extent })

	core.LogInfo("Scene built: %d meshes, texture %q %dx%d.", len(scene.Meshes), texture.Name, texture.Width, texture.Height)
	return nil
}

// BuildPipeline creates the pipelines, binds the descriptor sets and records the
// command sequences for the current scene.
func (r *TextureRenderer) BuildPipeline() error {
	if r.scene == nil {
		return core.ErrNotInitialized
	}
	if r.pipelines != nil {
		if err := r.device.WaitIdle(); err != nil {
			return err
		}
		r.releasePipeline()
	}

	if err := r.buildPipeline(); err != nil {
		r.releasePipeline()
		return err
	}
	return nil
}

func (r *TextureRenderer) buildPipeline() error {
	pipelines, err := BuildPipelines(r.device, r.ctx.PipelineCache, r.ctx.RenderPass, r.layout, r.scene, r.config)
	if err != nil {
		return err
	}
	r.pipelines = pipelines
	r.pipelineRelease.push("pipelines", func() {
		pipelines.Destroy(r.device)
		for _, mesh := range r.scene.Meshes {
			mesh.Pipeline = vk.NullPipeline
			mesh.WireframePipeline = vk.NullPipeline
		}
	})

	pool, err := NewDescriptorPool(r.device, r.ctx.FramesInFlight)
	if err != nil {
		return err
	}
	r.pool = pool
	r.pipelineRelease.push("descriptor pool", func() { pool.Destroy(r.device) })

	sets, err := BindDescriptorSets(r.device, pool, r.layout, r.scene.Transforms, r.texture)
	if err != nil {
		return err
	}
	r.sets = sets

	return r.record()
}

func (r *TextureRenderer) record() error {
	sequences, err := RecordCommandSequences(r.device, r.ctx.RenderTarget(), r.layout, r.sets, r.scene, r.clear)
	if err != nil {
		return err
	}
	r.sequences = sequences
	r.submitter.Sequences = sequences
	return nil
}

// RebuildCommandSequences records the sequences again against the current swapchain. The
// frame loop calls it after the swapchain is recreated. Up to date sequences are kept.
func (r *TextureRenderer) RebuildCommandSequences() error {
	if r.pipelines == nil {
		return core.ErrNotInitialized
	}
	if err := r.ctx.Validate(); err != nil {
		return err
	}
	if r.sequences != nil && !r.sequences.Stale(r.ctx.Generation, r.ctx.Extent) {
		return nil
	}
	return r.rerecord()
}

// rerecord records every sequence again, whether or not the swapchain changed. Used when
// the recorded content changes, like the pipeline each mesh binds.
func (r *TextureRenderer) rerecord() error {
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	return r.record()
}

func (r *TextureRenderer) UpdateUniforms(frame renderer.FrameInfo) error {
	if r.uniforms == nil {
		return core.ErrNotInitialized
	}
	return r.uniforms.Update(frame)
}

func (r *TextureRenderer) Render(frame renderer.FrameInfo) error {
	if r.submitter == nil {
		return core.ErrNotInitialized
	}
	return r.submitter.Submit(frame)
}

// SetWireframe switches every mesh between its solid and wireframe pipeline.
func (r *TextureRenderer) SetWireframe(enabled bool) error {
	r.wireframe = enabled
	if r.scene == nil {
		return nil
	}
	r.scene.SetWireframe(enabled)
	if r.sequences == nil {
		return nil
	}
	if err := r.ctx.Validate(); err != nil {
		// The swapchain is being rebuilt, its sequences pick up the flag.
		core.LogDebug("Wireframe %t deferred until the swapchain is rebuilt: %s", enabled, err)
		return nil
	}
	core.LogInfo("Wireframe %t, recording command sequences again.", enabled)
	return r.rerecord()
}

func (r *TextureRenderer) Wireframe() bool {
	return r.wireframe
}

// Destroy waits for the device to go idle and releases everything in reverse creation order.
func (r *TextureRenderer) Destroy() error {
	var err error
	if r.device != nil {
		if err = r.device.WaitIdle(); err != nil {
			core.LogError("Device wait idle before teardown failed: %s", err)
		}
	}
	r.releasePipeline()
	r.releaseScene()
	r.layoutRelease.unwind()
	r.layout = nil
	r.submitter = nil
	return err
}

func (r *TextureRenderer) releasePipeline() {
	r.pipelineRelease.unwind()
	r.pipelines = nil
	r.pool = nil
	r.sets = nil
	r.sequences = nil
	if r.submitter != nil {
		r.submitter.Sequences = nil
	}
}

func (r *TextureRenderer) releaseScene() {
	r.sceneRelease.unwind()
	r.scene = nil
	r.texture = nil
	r.uniforms = nil
}

func (r *TextureRenderer) DescriptorLayout() *DescriptorLayout {
	return r.layout
}

func (r *TextureRenderer) Pipelines() *PipelineSet {
	return r.pipelines
}

func (r *TextureRenderer) DescriptorPool() *DescriptorPool {
	return r.pool
}

func (r *TextureRenderer) DescriptorSets() []vk.DescriptorSet {
	return r.sets
}

func (r *TextureRenderer) CommandSequences() *CommandSequences {
	return r.sequences
}

func (r *TextureRenderer) Scene() *Scene {
	return r.scene
}

func (r *TextureRenderer) Texture() *Texture {
	return r.texture
}
