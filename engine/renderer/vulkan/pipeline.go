package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/spaghettifunk/texture-renderer/engine/renderer"
)

/**
 * @brief Fixed-function state shared by every pipeline built in one pass.
 */
type PipelineConfig struct {
	Topology vk.PrimitiveTopology
	/** @brief Fill for solid rendering, line for the wireframe variant. */
	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlags
	FrontFace   vk.FrontFace
	LineWidth   float32

	DepthTest      bool
	DepthWrite     bool
	DepthCompareOp vk.CompareOp

	BlendEnable    bool
	ColorWriteMask vk.ColorComponentFlags
	LogicOp        vk.LogicOp

	Samples       vk.SampleCountFlagBits
	DynamicStates []vk.DynamicState
}

func DefaultPipelineConfig(topology vk.PrimitiveTopology) PipelineConfig {
	return PipelineConfig{
		Topology:       topology,
		PolygonMode:    vk.PolygonModeFill,
		CullMode:       vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:      vk.FrontFaceCounterClockwise,
		LineWidth:      1.0,
		DepthTest:      true,
		DepthWrite:     true,
		DepthCompareOp: vk.CompareOpLessOrEqual,
		BlendEnable:    false,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
		LogicOp: vk.LogicOpCopy,
		Samples: vk.SampleCount1Bit,
		DynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
	}
}

// Wireframe returns a copy of the config that rasterizes polygon edges only.
func (c PipelineConfig) Wireframe() PipelineConfig {
	wireframe := c
	wireframe.DynamicStates = append([]vk.DynamicState(nil), c.DynamicStates...)
	wireframe.PolygonMode = vk.PolygonModeLine
	return wireframe
}

func TopologyFromName(topology renderer.Topology) (vk.PrimitiveTopology, error) {
	switch topology {
	case renderer.TopologyTriangleList, "":
		return vk.PrimitiveTopologyTriangleList, nil
	case renderer.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip, nil
	case renderer.TopologyLineList:
		return vk.PrimitiveTopologyLineList, nil
	case renderer.TopologyPointList:
		return vk.PrimitiveTopologyPointList, nil
	}
	return vk.PrimitiveTopologyTriangleList, fmt.Errorf("unknown topology %q", topology)
}

func boolToVk(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// createInfo assembles the graphics pipeline description for one set of stages and vertex input.
func (c PipelineConfig) createInfo(stages []vk.PipelineShaderStageCreateInfo, input VertexInputDescription, layout vk.PipelineLayout, renderPass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             c.PolygonMode,
		LineWidth:               c.LineWidth,
		CullMode:                c.CullMode,
		FrontFace:               c.FrontFace,
		DepthBiasEnable:         vk.False,
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: c.Samples,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVk(c.DepthTest),
		DepthWriteEnable:      boolToVk(c.DepthWrite),
		DepthCompareOp:        c.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:    boolToVk(c.BlendEnable),
		ColorWriteMask: c.ColorWriteMask,
	}

	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         c.LogicOp,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(c.DynamicStates)),
		PDynamicStates:    c.DynamicStates,
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(input.Bindings)),
		PVertexBindingDescriptions:      input.Bindings,
		VertexAttributeDescriptionCount: uint32(len(input.Attributes)),
		PVertexAttributeDescriptions:    input.Attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               c.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
}

/**
 * @brief One pipeline per mesh plus the wireframe variant.
 */
type PipelineSet struct {
	PerMesh []vk.Pipeline
	// Solid pipelines keyed by Mesh.ID.
	ByMesh          map[uuid.UUID]vk.Pipeline
	Wireframe       vk.Pipeline
	Config          PipelineConfig
	WireframeConfig PipelineConfig
}

// ForMesh returns the solid pipeline built for the mesh with id.
func (p *PipelineSet) ForMesh(id uuid.UUID) (vk.Pipeline, bool) {
	pipeline, ok := p.ByMesh[id]
	return pipeline, ok
}

// All returns every pipeline in creation order.
func (p *PipelineSet) All() []vk.Pipeline {
	all := append([]vk.Pipeline(nil), p.PerMesh...)
	if p.Wireframe != vk.NullPipeline {
		all = append(all, p.Wireframe)
	}
	return all
}

func (p *PipelineSet) Destroy(device Device) {
	for i := len(p.PerMesh) - 1; i >= 0; i-- {
		device.DestroyPipeline(p.PerMesh[i])
	}
	p.PerMesh = nil
	p.ByMesh = nil
	if p.Wireframe != vk.NullPipeline {
		device.DestroyPipeline(p.Wireframe)
		p.Wireframe = vk.NullPipeline
	}
}

// BuildPipelines creates a pipeline for every mesh of scene and the wireframe pipeline, then
// hands each mesh its own pair. On failure every pipeline created so far is destroyed.
func BuildPipelines(device Device, cache vk.PipelineCache, renderPass vk.RenderPass, layout *DescriptorLayout, scene *Scene, config PipelineConfig) (*PipelineSet, error) {
	if layout == nil || layout.PipelineLayout == nil {
		return nil, setupError("BuildPipelines", fmt.Errorf("%w: pipeline layout not built", core.ErrNotInitialized))
	}

	set := &PipelineSet{
		ByMesh:          make(map[uuid.UUID]vk.Pipeline, len(scene.Meshes)),
		Config:          config,
		WireframeConfig: config.Wireframe(),
	}
	stages := scene.ShaderStages()

	create := func(cfg PipelineConfig, input VertexInputDescription) (vk.Pipeline, error) {
		info := cfg.createInfo(stages, input, layout.PipelineLayout, renderPass)
		pipelines, err := device.CreateGraphicsPipelines(cache, []vk.GraphicsPipelineCreateInfo{info})
		if err != nil {
			return vk.NullPipeline, err
		}
		if len(pipelines) != 1 {
			return vk.NullPipeline, fmt.Errorf("expected 1 pipeline, got %d", len(pipelines))
		}
		return pipelines[0], nil
	}

	for i, mesh := range scene.Meshes {
		pipeline, err := create(set.Config, mesh.VertexInputDescription())
		if err != nil {
			set.Destroy(device)
			return nil, setupError(fmt.Sprintf("vkCreateGraphicsPipelines (mesh %d %q %s)", i, mesh.Name, mesh.ID), err)
		}
		set.PerMesh = append(set.PerMesh, pipeline)
		set.ByMesh[mesh.ID] = pipeline
	}

	wireframe, err := create(set.WireframeConfig, scene.VertexInputDescription())
	if err != nil {
		set.Destroy(device)
		return nil, setupError("vkCreateGraphicsPipelines (wireframe)", err)
	}
	set.Wireframe = wireframe

	for _, mesh := range scene.Meshes {
		mesh.Pipeline = set.ByMesh[mesh.ID]
		mesh.WireframePipeline = set.Wireframe
	}

	core.LogDebug("Graphics pipelines created: %d per mesh + wireframe", len(set.PerMesh))
	return set, nil
}
