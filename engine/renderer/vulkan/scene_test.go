package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/math"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(32), Vertex3DStride)

	input := Vertex3DInputDescription()
	require.Len(t, input.Bindings, 1)
	assert.Equal(t, Vertex3DStride, input.Bindings[0].Stride)
	require.Len(t, input.Attributes, 3)
	assert.Equal(t, uint32(0), input.Attributes[0].Offset)
	assert.Equal(t, uint32(12), input.Attributes[1].Offset)
	assert.Equal(t, uint32(24), input.Attributes[2].Offset)
	assert.Equal(t, vk.FormatR32g32Sfloat, input.Attributes[2].Format)
}

func TestNewSceneUploads(t *testing.T) {
	device := newFakeDevice()
	release := &releaseStack{}

	scene, err := NewScene(device, testSceneData(quadMeshData("quad")), 3, release)
	require.NoError(t, err)

	require.Len(t, scene.Meshes, 1)
	assert.Equal(t, uint32(4), scene.Meshes[0].VertexCount)
	assert.Equal(t, uint32(6), scene.Meshes[0].IndexCount)
	assert.Len(t, scene.Transforms, 3)
	assert.Len(t, scene.ShaderStages(), 2)
	assert.NotNil(t, scene.Camera, "a default camera is provided")
	// vertex and index buffers, three transform buffers
	assert.Equal(t, 5, device.live("buffer"))
	assert.Equal(t, 2, device.live("shaderModule"))
	assert.Equal(t, []uint64{16, 16}, device.shaderSizes, "code size is in bytes")
	// shader, mesh, three transform buffers
	assert.Equal(t, 5, release.Len())

	release.unwind()
	assert.Zero(t, device.live(""))
	assert.Empty(t, device.invalid)
}

func TestNewScenePartialFailureUnwinds(t *testing.T) {
	device := newFakeDevice()
	release := &releaseStack{}

	// Buffers: staging+vertex, staging+index for the first mesh, then the second mesh's staging fails.
	device.failOn("CreateBuffer", 5, vk.ErrorOutOfDeviceMemory)
	_, err := NewScene(device, testSceneData(quadMeshData("a"), quadMeshData("b")), 2, release)
	require.Error(t, err)

	release.unwind()
	assert.Zero(t, device.live(""))
	assert.Empty(t, device.invalid)
}

func TestNewMeshRejectsBadIndices(t *testing.T) {
	device := newFakeDevice()
	data := quadMeshData("broken")
	data.Indices = append(data.Indices, 4)

	_, err := NewMesh(device, data)
	assert.Error(t, err)

	_, err = NewMesh(device, renderer.MeshData{Name: "empty"})
	assert.Error(t, err)
	assert.Zero(t, device.live(""))
}

func TestMeshRecordWithoutIndices(t *testing.T) {
	device := newFakeDevice()
	data := quadMeshData("points")
	data.Indices = nil

	mesh, err := NewMesh(device, data)
	require.NoError(t, err)
	assert.Nil(t, mesh.IndexBuffer)

	cb := vk.CommandBuffer(fakeHandle())
	mesh.Record(device, cb)
	assert.Equal(t, []string{"bindPipeline", "bindVertexBuffers", "draw 4"}, device.commands[cb])

	mesh.Destroy(device)
	assert.Zero(t, device.live(""))
}

func TestMeshActivePipeline(t *testing.T) {
	solid := vk.Pipeline(fakeHandle())
	lines := vk.Pipeline(fakeHandle())
	mesh := &Mesh{Pipeline: solid}

	mesh.Wireframe = true
	assert.Equal(t, solid, mesh.ActivePipeline(), "no wireframe pipeline yet")

	mesh.WireframePipeline = lines
	assert.Equal(t, lines, mesh.ActivePipeline())

	mesh.Wireframe = false
	assert.Equal(t, solid, mesh.ActivePipeline())
}

func TestVertexEncodingMatchesStride(t *testing.T) {
	vertices := []math.Vertex3D{{}, {}}
	data, err := encodeLittleEndian(vertices)
	require.NoError(t, err)
	assert.Len(t, data, 2*int(unsafe.Sizeof(math.Vertex3D{})))
}
