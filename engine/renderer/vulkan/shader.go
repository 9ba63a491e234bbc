package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

const shaderEntryPoint = "main"

/**
 * @brief Represents a single shader stage.
 */
type ShaderStage struct {
	Module vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

/**
 * @brief The vertex and fragment stages every scene pipeline is built from.
 */
type Shader struct {
	Stages []ShaderStage
}

func NewShader(device Device, data renderer.ShaderData) (*Shader, error) {
	shader := &Shader{}
	sources := []struct {
		stage vk.ShaderStageFlagBits
		code  []uint32
	}{
		{vk.ShaderStageVertexBit, data.Vertex},
		{vk.ShaderStageFragmentBit, data.Fragment},
	}
	for _, src := range sources {
		module, err := newShaderModule(device, src.code)
		if err != nil {
			shader.Destroy(device)
			return nil, err
		}
		shader.Stages = append(shader.Stages, ShaderStage{Module: module, Stage: src.stage})
	}
	return shader, nil
}

func newShaderModule(device Device, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return vk.NullShaderModule, fmt.Errorf("empty SPIR-V module")
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	return device.CreateShaderModule(&info)
}

// StageInfos returns the ordered stage list handed to pipeline creation.
func (s *Shader) StageInfos() []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, len(s.Stages))
	for i, stage := range s.Stages {
		infos[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage.Stage,
			Module: stage.Module,
			PName:  VulkanSafeString(shaderEntryPoint),
		}
	}
	return infos
}

func (s *Shader) Destroy(device Device) {
	for _, stage := range s.Stages {
		device.DestroyShaderModule(stage.Module)
	}
	s.Stages = nil
}
