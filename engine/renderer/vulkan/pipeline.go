package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

const shaderEntryPoint = "main\x00"

func (vb *VulkanBackend) CreatePipelineLayout(setLayout metadata.DescriptorSetLayout) (metadata.PipelineLayout, error) {
	layout, ok := vb.handles.setLayouts.get(setLayout)
	if !ok {
		return 0, errors.Newf("unknown descriptor set layout %d", setLayout)
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{layout},
		PushConstantRangeCount: 0,
		PPushConstantRanges:    nil,
	}

	// Create the pipeline layout.
	var pipelineLayout vk.PipelineLayout
	err := vb.lockPool.SafeCall(PipelineManagement, func() error {
		return vulkanError(vk.CreatePipelineLayout(vb.logicalDevice(), &pipelineLayoutCreateInfo, vb.context.Allocator, &pipelineLayout), "vkCreatePipelineLayout")
	})
	if err != nil {
		return 0, err
	}
	return vb.handles.pipelineLayouts.add(pipelineLayout), nil
}

func (vb *VulkanBackend) DestroyPipelineLayout(layout metadata.PipelineLayout) {
	handle, ok := vb.handles.pipelineLayouts.remove(layout)
	if !ok {
		return
	}
	_ = vb.lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(vb.logicalDevice(), handle, vb.context.Allocator)
		return nil
	})
}

func toCullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	default:
		fallthrough
	case metadata.FaceCullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}

/**
 * @brief Builds the graphics pipeline: triangle lists from a single
 * interleaved vertex binding, filled polygons, no blending. Viewport and
 * scissor are dynamic so the pipeline survives a swapchain resize.
 */
func (vb *VulkanBackend) CreateGraphicsPipeline(info metadata.PipelineInfo) (metadata.Pipeline, error) {
	renderPass, ok := vb.handles.renderPasses.get(info.RenderPass)
	if !ok {
		return 0, errors.Newf("unknown render pass %d", info.RenderPass)
	}
	layout, ok := vb.handles.pipelineLayouts.get(info.Layout)
	if !ok {
		return 0, errors.Newf("unknown pipeline layout %d", info.Layout)
	}
	vertexShader, ok := vb.handles.shaderModules.get(info.VertexShader)
	if !ok {
		return 0, errors.Newf("unknown vertex shader module %d", info.VertexShader)
	}
	fragmentShader, ok := vb.handles.shaderModules.get(info.FragmentShader)
	if !ok {
		return 0, errors.Newf("unknown fragment shader module %d", info.FragmentShader)
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertexShader,
			PName:  shaderEntryPoint,
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragmentShader,
			PName:  shaderEntryPoint,
		},
	}

	// Viewport state. The actual values are set while recording.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                toCullMode(info.CullMode),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		DepthBiasConstantFactor: 0.0,
		DepthBiasClamp:          0.0,
		DepthBiasSlopeFactor:    0.0,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		PSampleMask:           nil,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	if info.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}
	if info.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}

	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    info.VertexStride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}

	// Attributes
	attributes := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := vb.lockPool.SafeCall(PipelineManagement, func() error {
		return vulkanError(vk.CreateGraphicsPipelines(
			vb.logicalDevice(),
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			vb.context.Allocator,
			pipelines), "vkCreateGraphicsPipelines")
	})
	if err != nil {
		return 0, err
	}
	if pipelines[0] == vk.NullPipeline {
		return 0, errors.New("vulkan pipeline handle is nil")
	}

	core.LogDebug("Graphics pipeline created!")
	return vb.handles.pipelines.add(pipelines[0]), nil
}

func (vb *VulkanBackend) DestroyPipeline(pipeline metadata.Pipeline) {
	handle, ok := vb.handles.pipelines.remove(pipeline)
	if !ok {
		return
	}
	_ = vb.lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(vb.logicalDevice(), handle, vb.context.Allocator)
		return nil
	})
}

func (vb *VulkanBackend) CmdBindPipeline(cb metadata.CommandBuffer, pipeline metadata.Pipeline) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	if p, ok := vb.handles.pipelines.get(pipeline); ok {
		vk.CmdBindPipeline(handle, vk.PipelineBindPointGraphics, p)
	}
}

// CmdSetViewport covers the whole extent with the full depth range.
func (vb *VulkanBackend) CmdSetViewport(cb metadata.CommandBuffer, extent metadata.Extent) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(handle, 0, 1, []vk.Viewport{viewport})
}

func (vb *VulkanBackend) CmdSetScissor(cb metadata.CommandBuffer, extent metadata.Extent) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	vk.CmdSetScissor(handle, 0, 1, []vk.Rect2D{scissor})
}
