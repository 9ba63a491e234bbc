package renderer

import (
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer/components"
)

type RendererType uint8

const (
	Vulkan RendererType = iota
)

// FrameInfo identifies the frame being prepared. Slot selects the per-frame resources
// (transform buffer, descriptor set, sync objects), ImageIndex the acquired swapchain image.
type FrameInfo struct {
	Slot       uint32
	ImageIndex uint32
	DeltaTime  float64
}

// Backend owns the device, the swapchain and the present loop.
type Backend interface {
	BeginFrame(deltaTime float64) (FrameInfo, error)
	EndFrame(frame FrameInfo) error
	Resized(width, height uint32)
	RecreateSwapchain() error
	Shutdown() error
}

// RenderCore builds and drives the textured scene on top of a backend's swapchain.
type RenderCore interface {
	Initialize() error
	BuildScene(scene *SceneData) error
	BuildPipeline() error
	Render(frame FrameInfo) error
	UpdateUniforms(frame FrameInfo) error
	RebuildCommandSequences() error
	SetWireframe(enabled bool) error
	Destroy() error
}

type Topology string

const (
	TopologyTriangleList  Topology = "triangle_list"
	TopologyTriangleStrip Topology = "triangle_strip"
	TopologyLineList      Topology = "line_list"
	TopologyPointList     Topology = "point_list"
)

func (t Topology) Valid() bool {
	switch t {
	case TopologyTriangleList, TopologyTriangleStrip, TopologyLineList, TopologyPointList:
		return true
	}
	return false
}

// Options are the renderer settings that come from the config file.
type Options struct {
	FramesInFlight uint32
	Topology       Topology
	Wireframe      bool
	ClearColor     [4]float32
	MaxAnisotropy  float32
}

type MeshData struct {
	Name     string
	Vertices []math.Vertex3D
	// Empty when the mesh is drawn without an index buffer.
	Indices []uint32
}

// TextureData holds tightly packed RGBA8 pixels.
type TextureData struct {
	Name   string
	Width  uint32
	Height uint32
	Pixels []uint8
}

// ShaderData holds SPIR-V words for each stage.
type ShaderData struct {
	Vertex   []uint32
	Fragment []uint32
}

type SceneData struct {
	Meshes  []MeshData
	Texture TextureData
	Shader  ShaderData
	Camera  *components.Camera
	// Placement of the meshes in the world. Nil places them at the origin.
	Transform     *math.Transform
	RotationSpeed float32
}
