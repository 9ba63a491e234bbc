package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
)

const (
	// TransformBinding holds TransformData, read by the vertex stage.
	TransformBinding uint32 = 0
	// TextureBinding holds the combined image sampler, read by the fragment stage.
	TextureBinding uint32 = 1
)

/**
 * @brief The binding contract of the scene shaders and the pipeline layout derived from it.
 */
type DescriptorLayout struct {
	Bindings       []vk.DescriptorSetLayoutBinding
	SetLayout      vk.DescriptorSetLayout
	PipelineLayout vk.PipelineLayout
}

func SceneBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{
		{
			Binding:         TransformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         TextureBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
}

// ValidateBindings checks bindings against what the scene shaders declare.
func ValidateBindings(bindings []vk.DescriptorSetLayoutBinding) error {
	want := SceneBindings()
	if len(bindings) != len(want) {
		return fmt.Errorf("%w: expected %d bindings, got %d", core.ErrInvalidBinding, len(want), len(bindings))
	}
	for i := range want {
		got := bindings[i]
		if got.Binding != want[i].Binding ||
			got.DescriptorType != want[i].DescriptorType ||
			got.StageFlags != want[i].StageFlags ||
			got.DescriptorCount != want[i].DescriptorCount {
			return fmt.Errorf("%w: binding %d is type %d at stages %#x, want slot %d type %d at stages %#x",
				core.ErrInvalidBinding, i, got.DescriptorType, got.StageFlags,
				want[i].Binding, want[i].DescriptorType, want[i].StageFlags)
		}
	}
	return nil
}

func BuildDescriptorLayout(device Device) (*DescriptorLayout, error) {
	return buildDescriptorLayout(device, SceneBindings())
}

func buildDescriptorLayout(device Device, bindings []vk.DescriptorSetLayoutBinding) (*DescriptorLayout, error) {
	if err := ValidateBindings(bindings); err != nil {
		return nil, err
	}

	layout := &DescriptorLayout{Bindings: bindings}

	setLayout, err := device.CreateDescriptorSetLayout(&vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	})
	if err != nil {
		return nil, setupError("vkCreateDescriptorSetLayout", err)
	}
	layout.SetLayout = setLayout

	pipelineLayout, err := device.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	})
	if err != nil {
		device.DestroyDescriptorSetLayout(setLayout)
		return nil, setupError("vkCreatePipelineLayout", err)
	}
	layout.PipelineLayout = pipelineLayout

	core.LogDebug("Descriptor set layout and pipeline layout created.")
	return layout, nil
}

// Destroy releases the pipeline layout, then the set layout.
func (l *DescriptorLayout) Destroy(device Device) {
	if l.PipelineLayout != nil {
		device.DestroyPipelineLayout(l.PipelineLayout)
		l.PipelineLayout = nil
	}
	if l.SetLayout != vk.NullDescriptorSetLayout {
		device.DestroyDescriptorSetLayout(l.SetLayout)
		l.SetLayout = vk.NullDescriptorSetLayout
	}
}
