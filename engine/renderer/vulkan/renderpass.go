package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/**
 * @brief Creates the single render pass: one cleared color attachment that
 * ends in the present layout and one cleared depth attachment.
 */
func (vb *VulkanBackend) CreateRenderPass(info metadata.RenderPassInfo) (metadata.RenderPass, error) {
	// Color attachment
	colorAttachment := vk.AttachmentDescription{
		Format:         vk.Format(info.ColorFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	// Depth attachment
	depthAttachment := vk.AttachmentDescription{
		Format:         vk.Format(info.DepthFormat),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachmentReference := vk.AttachmentReference{
		Attachment: 0, // Attachment description array index
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentReference},
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	// The previous frame's color and depth writes have to finish before this
	// frame clears the attachments.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 2,
		PAttachments:    []vk.AttachmentDescription{colorAttachment, depthAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if err := vulkanError(vk.CreateRenderPass(vb.logicalDevice(), &renderpassCreateInfo, vb.context.Allocator, &renderPass), "vkCreateRenderPass"); err != nil {
		return 0, err
	}
	core.LogDebug("Render pass created (color %d, depth %d).", info.ColorFormat, info.DepthFormat)
	return vb.handles.renderPasses.add(renderPass), nil
}

func (vb *VulkanBackend) DestroyRenderPass(renderPass metadata.RenderPass) {
	if handle, ok := vb.handles.renderPasses.remove(renderPass); ok {
		vk.DestroyRenderPass(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

func (vb *VulkanBackend) CreateFramebuffer(renderPass metadata.RenderPass, attachments []metadata.ImageView, extent metadata.Extent) (metadata.Framebuffer, error) {
	pass, ok := vb.handles.renderPasses.get(renderPass)
	if !ok {
		return 0, errors.Newf("unknown render pass %d", renderPass)
	}
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		view, ok := vb.handles.views.get(a)
		if !ok {
			return 0, errors.Newf("unknown image view %d", a)
		}
		views[i] = view
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vulkanError(vk.CreateFramebuffer(vb.logicalDevice(), &framebufferCreateInfo, vb.context.Allocator, &framebuffer), "vkCreateFramebuffer"); err != nil {
		return 0, err
	}
	return vb.handles.framebuffers.add(framebuffer), nil
}

func (vb *VulkanBackend) DestroyFramebuffer(framebuffer metadata.Framebuffer) {
	if handle, ok := vb.handles.framebuffers.remove(framebuffer); ok {
		vk.DestroyFramebuffer(vb.logicalDevice(), handle, vb.context.Allocator)
	}
}

func (vb *VulkanBackend) CmdBeginRenderPass(cb metadata.CommandBuffer, renderPass metadata.RenderPass, framebuffer metadata.Framebuffer, extent metadata.Extent, clear metadata.ClearValues) {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok || commandBuffer.State != commandBufferStateRecording {
		core.LogWarn("Render pass begun on command buffer %d which is not recording.", cb)
		return
	}
	pass, _ := vb.handles.renderPasses.get(renderPass)
	fb, _ := vb.handles.framebuffers.get(framebuffer)

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear.Color[:])
	clearValues[1].SetDepthStencil(clear.Depth, clear.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = commandBufferStateInRenderPass
}

func (vb *VulkanBackend) CmdEndRenderPass(cb metadata.CommandBuffer) {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok || commandBuffer.State != commandBufferStateInRenderPass {
		return
	}
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = commandBufferStateRecording
}
