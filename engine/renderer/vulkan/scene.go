package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/spaghettifunk/texture-renderer/engine/renderer/components"
)

/**
 * @brief Everything drawn in a frame: camera, meshes, shader set and one
 * transform buffer per frame slot.
 */
type Scene struct {
	Meshes []*Mesh
	Shader *Shader
	Camera *components.Camera
	// Nil means identity.
	Transform *math.Transform
	// Indexed by FrameInfo.Slot.
	Transforms []*Buffer

	RotationSpeed float32
	// Current model rotation around Y, in radians.
	Rotation float32
}

// NewScene uploads data. Every created resource is pushed on release, so unwinding it
// frees a partially built scene as well as a complete one.
func NewScene(device Device, data *renderer.SceneData, framesInFlight uint32, release *releaseStack) (*Scene, error) {
	if framesInFlight == 0 {
		return nil, fmt.Errorf("frames in flight must be at least 1")
	}

	camera := data.Camera
	if camera == nil {
		camera = components.NewCamera(math.NewVec3(0, 0, 3), math.NewVec3Zero(), 45, 0.1, 100)
	}
	scene := &Scene{
		Camera:        camera,
		Transform:     data.Transform,
		RotationSpeed: data.RotationSpeed,
	}

	shader, err := NewShader(device, data.Shader)
	if err != nil {
		return nil, setupError("shader", err)
	}
	scene.Shader = shader
	release.push("shader", func() { shader.Destroy(device) })

	for _, meshData := range data.Meshes {
		mesh, err := NewMesh(device, meshData)
		if err != nil {
			return nil, setupError(fmt.Sprintf("mesh %q", meshData.Name), err)
		}
		scene.Meshes = append(scene.Meshes, mesh)
		release.push("mesh "+meshData.Name, func() { mesh.Destroy(device) })
	}

	for slot := uint32(0); slot < framesInFlight; slot++ {
		buffer, err := NewBuffer(device, TransformDataSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostVisible)
		if err != nil {
			return nil, setupError(fmt.Sprintf("transform buffer %d", slot), err)
		}
		scene.Transforms = append(scene.Transforms, buffer)
		release.push(fmt.Sprintf("transform buffer %d", slot), func() { buffer.Destroy(device) })
	}
	return scene, nil
}

// VertexInputDescription is shared by every mesh of the scene.
func (s *Scene) VertexInputDescription() VertexInputDescription {
	return Vertex3DInputDescription()
}

func (s *Scene) ShaderStages() []vk.PipelineShaderStageCreateInfo {
	if s.Shader == nil {
		return nil
	}
	return s.Shader.StageInfos()
}

func (s *Scene) SetWireframe(enabled bool) {
	for _, mesh := range s.Meshes {
		mesh.Wireframe = enabled
	}
}
