package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologyFromName(t *testing.T) {
	tests := []struct {
		in      renderer.Topology
		want    vk.PrimitiveTopology
		wantErr bool
	}{
		{in: "", want: vk.PrimitiveTopologyTriangleList},
		{in: renderer.TopologyTriangleList, want: vk.PrimitiveTopologyTriangleList},
		{in: renderer.TopologyTriangleStrip, want: vk.PrimitiveTopologyTriangleStrip},
		{in: renderer.TopologyLineList, want: vk.PrimitiveTopologyLineList},
		{in: renderer.TopologyPointList, want: vk.PrimitiveTopologyPointList},
		{in: "fan", want: vk.PrimitiveTopologyTriangleList, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := TopologyFromName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWireframeConfigIsACopy(t *testing.T) {
	config := DefaultPipelineConfig(vk.PrimitiveTopologyTriangleList)
	wireframe := config.Wireframe()

	assert.Equal(t, vk.PolygonModeFill, config.PolygonMode)
	assert.Equal(t, vk.PolygonModeLine, wireframe.PolygonMode)

	wireframe.DynamicStates[0] = vk.DynamicStateLineWidth
	assert.Equal(t, vk.DynamicStateViewport, config.DynamicStates[0])
}

func newTestScene(t *testing.T, device *fakeDevice, frames uint32, meshes ...renderer.MeshData) (*Scene, *releaseStack) {
	t.Helper()
	release := &releaseStack{}
	scene, err := NewScene(device, testSceneData(meshes...), frames, release)
	require.NoError(t, err)
	return scene, release
}

func TestBuildPipelines(t *testing.T) {
	device := newFakeDevice()
	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	scene, release := newTestScene(t, device, 2, quadMeshData("a"), quadMeshData("b"))

	config := DefaultPipelineConfig(vk.PrimitiveTopologyLineList)
	set, err := BuildPipelines(device, vk.NullPipelineCache, vk.RenderPass(fakeHandle()), layout, scene, config)
	require.NoError(t, err)

	require.Len(t, set.PerMesh, 2)
	assert.Len(t, set.All(), 3)
	assert.Equal(t, 3, device.live("pipeline"))
	require.Len(t, set.ByMesh, 2)
	for i, mesh := range scene.Meshes {
		assert.True(t, set.PerMesh[i] == mesh.Pipeline)
		assert.True(t, set.Wireframe == mesh.WireframePipeline)
		byID, ok := set.ForMesh(mesh.ID)
		require.True(t, ok)
		assert.True(t, byID == mesh.Pipeline, "mesh %s keyed to its own pipeline", mesh.ID)
		assert.Equal(t, vk.PolygonModeFill, device.pipelineModes[mesh.Pipeline])
		assert.Equal(t, vk.PrimitiveTopologyLineList, device.topologies[mesh.Pipeline])
	}
	assert.Equal(t, vk.PolygonModeLine, device.pipelineModes[set.Wireframe])

	assert.False(t, scene.Meshes[0].Pipeline == scene.Meshes[1].Pipeline)
	_, ok := set.ForMesh(uuid.New())
	assert.False(t, ok)

	set.Destroy(device)
	assert.Zero(t, device.live("pipeline"))

	release.unwind()
	layout.Destroy(device)
	assert.Zero(t, device.live(""))
	assert.Empty(t, device.invalid)
}

func TestBuildPipelinesFailureDestroysCreated(t *testing.T) {
	device := newFakeDevice()
	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	scene, release := newTestScene(t, device, 2, quadMeshData("a"), quadMeshData("b"))

	// Second mesh pipeline fails.
	device.failOn("CreateGraphicsPipelines", 2, vk.ErrorOutOfDeviceMemory)
	_, err = BuildPipelines(device, vk.NullPipelineCache, vk.RenderPass(fakeHandle()), layout, scene, DefaultPipelineConfig(vk.PrimitiveTopologyTriangleList))
	assert.ErrorIs(t, err, core.ErrSetupFailed)
	assert.Zero(t, device.live("pipeline"))
	assert.Empty(t, device.invalid)

	release.unwind()
	layout.Destroy(device)
}

func TestBuildPipelinesNeedsLayout(t *testing.T) {
	device := newFakeDevice()
	scene, release := newTestScene(t, device, 1, quadMeshData("a"))
	defer release.unwind()

	_, err := BuildPipelines(device, vk.NullPipelineCache, vk.RenderPass(fakeHandle()), nil, scene, DefaultPipelineConfig(vk.PrimitiveTopologyTriangleList))
	assert.ErrorIs(t, err, core.ErrNotInitialized)
	assert.Zero(t, device.calls["CreateGraphicsPipelines"])
}
