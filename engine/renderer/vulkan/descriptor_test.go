package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSceneBindingsMatchShaderContract(t *testing.T) {
	bindings := SceneBindings()
	require.Len(t, bindings, 2)

	assert.Equal(t, TransformBinding, bindings[0].Binding)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, bindings[0].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit), bindings[0].StageFlags)

	assert.Equal(t, TextureBinding, bindings[1].Binding)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, bindings[1].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), bindings[1].StageFlags)

	assert.NoError(t, ValidateBindings(bindings))
}

func TestValidateBindingsRejectsMismatch(t *testing.T) {
	swapped := SceneBindings()
	swapped[0].DescriptorType, swapped[1].DescriptorType = swapped[1].DescriptorType, swapped[0].DescriptorType

	wrongStage := SceneBindings()
	wrongStage[1].StageFlags = vk.ShaderStageFlags(vk.ShaderStageVertexBit)

	tests := map[string][]vk.DescriptorSetLayoutBinding{
		"empty":       nil,
		"missing":     SceneBindings()[:1],
		"swapped":     swapped,
		"wrong stage": wrongStage,
	}
	for name, bindings := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateBindings(bindings), core.ErrInvalidBinding)
		})
	}
}

func TestBuildDescriptorLayout(t *testing.T) {
	device := newFakeDevice()

	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	assert.NotNil(t, layout.PipelineLayout)
	assert.Equal(t, 1, device.live("descriptorSetLayout"))
	assert.Equal(t, 1, device.live("pipelineLayout"))

	layout.Destroy(device)
	assert.Zero(t, device.live(""))
	assert.Empty(t, device.invalid)

	// Destroy twice is harmless.
	layout.Destroy(device)
	assert.Empty(t, device.invalid)
}

func TestBuildDescriptorLayoutInvalidBindingsCreateNothing(t *testing.T) {
	device := newFakeDevice()

	_, err := buildDescriptorLayout(device, SceneBindings()[:1])
	assert.ErrorIs(t, err, core.ErrInvalidBinding)
	assert.Zero(t, device.calls["CreateDescriptorSetLayout"])
}

func TestBuildDescriptorLayoutPipelineLayoutFailure(t *testing.T) {
	device := newFakeDevice()
	device.failOn("CreatePipelineLayout", 1, vk.ErrorOutOfHostMemory)

	_, err := BuildDescriptorLayout(device)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSetupFailed))

	var resultErr *ResultError
	require.ErrorAs(t, err, &resultErr)
	assert.Equal(t, vk.ErrorOutOfHostMemory, resultErr.Result)
	assert.Zero(t, device.live(""), "set layout must be released")
}
