package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	commandBufferStateReady VulkanCommandBufferState = iota
	commandBufferStateRecording
	commandBufferStateInRenderPass
	commandBufferStateRecordingEnded
	commandBufferStateSubmitted
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case commandBufferStateReady:
		return "ready"
	case commandBufferStateRecording:
		return "recording"
	case commandBufferStateInRenderPass:
		return "in render pass"
	case commandBufferStateRecordingEnded:
		return "recording ended"
	case commandBufferStateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

type vulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

// recording returns the Vulkan handle of cb if commands may be recorded into
// it right now.
func (vb *VulkanBackend) recording(cb metadata.CommandBuffer) (vk.CommandBuffer, bool) {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok {
		return nil, false
	}
	switch commandBuffer.State {
	case commandBufferStateRecording, commandBufferStateInRenderPass:
		return commandBuffer.Handle, true
	}
	core.LogWarn("Command recorded into command buffer %d while %s.", cb, commandBuffer.State)
	return nil, false
}

/** @brief Allocates count primary command buffers from the graphics command pool. */
func (vb *VulkanBackend) AllocateCommandBuffers(count uint32) ([]metadata.CommandBuffer, error) {
	if count == 0 {
		return nil, nil
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vb.context.Device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}

	buffers := make([]vk.CommandBuffer, count)
	err := vb.lockPool.SafeCall(CommandBufferManagement, func() error {
		return vulkanError(vk.AllocateCommandBuffers(vb.logicalDevice(), &allocateInfo, buffers), "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}

	out := make([]metadata.CommandBuffer, count)
	for i, b := range buffers {
		out[i] = vb.handles.commandBuffers.add(&vulkanCommandBuffer{Handle: b, State: commandBufferStateReady})
	}
	return out, nil
}

func (vb *VulkanBackend) FreeCommandBuffers(cbs []metadata.CommandBuffer) {
	buffers := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if commandBuffer, ok := vb.handles.commandBuffers.remove(cb); ok {
			buffers = append(buffers, commandBuffer.Handle)
		}
	}
	if len(buffers) == 0 {
		return
	}
	_ = vb.lockPool.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(vb.logicalDevice(), vb.context.Device.GraphicsCommandPool, uint32(len(buffers)), buffers)
		return nil
	})
}

func (vb *VulkanBackend) ResetCommandBuffer(cb metadata.CommandBuffer) error {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok {
		return errors.Newf("unknown command buffer %d", cb)
	}
	if err := vulkanError(vk.ResetCommandBuffer(commandBuffer.Handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	commandBuffer.State = commandBufferStateReady
	return nil
}

func (vb *VulkanBackend) BeginCommandBuffer(cb metadata.CommandBuffer, oneShot bool) error {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok {
		return errors.Newf("unknown command buffer %d", cb)
	}
	if commandBuffer.State == commandBufferStateRecording || commandBuffer.State == commandBufferStateInRenderPass {
		return errors.Newf("command buffer %d is already recording", cb)
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if oneShot {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if err := vulkanError(vk.BeginCommandBuffer(commandBuffer.Handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	commandBuffer.State = commandBufferStateRecording
	return nil
}

func (vb *VulkanBackend) EndCommandBuffer(cb metadata.CommandBuffer) error {
	commandBuffer, ok := vb.handles.commandBuffers.get(cb)
	if !ok {
		return errors.Newf("unknown command buffer %d", cb)
	}
	if commandBuffer.State != commandBufferStateRecording {
		return errors.Newf("cannot end command buffer %d while %s", cb, commandBuffer.State)
	}
	if err := vulkanError(vk.EndCommandBuffer(commandBuffer.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	commandBuffer.State = commandBufferStateRecordingEnded
	return nil
}

func (vb *VulkanBackend) CmdBindVertexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	if b, ok := vb.handles.buffers.get(buffer); ok {
		vk.CmdBindVertexBuffers(handle, 0, 1, []vk.Buffer{b}, []vk.DeviceSize{0})
	}
}

// CmdBindIndexBuffer binds buffer as a 16-bit index buffer.
func (vb *VulkanBackend) CmdBindIndexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	if b, ok := vb.handles.buffers.get(buffer); ok {
		vk.CmdBindIndexBuffer(handle, b, 0, vk.IndexTypeUint16)
	}
}

func (vb *VulkanBackend) CmdDrawIndexed(cb metadata.CommandBuffer, indexCount uint32) {
	if handle, ok := vb.recording(cb); ok {
		vk.CmdDrawIndexed(handle, indexCount, 1, 0, 0, 0)
	}
}

func (vb *VulkanBackend) CmdCopyBuffer(cb metadata.CommandBuffer, src, dst metadata.Buffer, size uint64) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	srcBuffer, ok := vb.handles.buffers.get(src)
	if !ok {
		return
	}
	dstBuffer, ok := vb.handles.buffers.get(dst)
	if !ok {
		return
	}
	copyRegion := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(handle, srcBuffer, dstBuffer, 1, []vk.BufferCopy{copyRegion})
}

// CmdCopyBufferToImage copies tightly packed texels into the color aspect of
// dst, which must be in the transfer destination layout.
func (vb *VulkanBackend) CmdCopyBufferToImage(cb metadata.CommandBuffer, src metadata.Buffer, dst metadata.Image, extent metadata.Extent) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	buffer, ok := vb.handles.buffers.get(src)
	if !ok {
		return
	}
	image, ok := vb.handles.images.get(dst)
	if !ok {
		return
	}

	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(handle, buffer, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (vb *VulkanBackend) CmdImageBarrier(cb metadata.CommandBuffer, barrier metadata.ImageBarrier) {
	handle, ok := vb.recording(cb)
	if !ok {
		return
	}
	image, ok := vb.handles.images.get(barrier.Image)
	if !ok {
		return
	}

	imageBarrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
		DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
		OldLayout:           vk.ImageLayout(barrier.OldLayout),
		NewLayout:           vk.ImageLayout(barrier.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(barrier.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	vk.CmdPipelineBarrier(
		handle,
		vk.PipelineStageFlags(barrier.SrcStage),
		vk.PipelineStageFlags(barrier.DstStage),
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{imageBarrier},
	)
}

/**
 * @brief Submits one command buffer to the graphics queue. Null semaphores
 * and a null fence are left out of the submission.
 */
func (vb *VulkanBackend) Submit(info metadata.SubmitInfo) error {
	commandBuffer, ok := vb.handles.commandBuffers.get(info.CommandBuffer)
	if !ok {
		return errors.Newf("unknown command buffer %d", info.CommandBuffer)
	}
	if commandBuffer.State != commandBufferStateRecordingEnded {
		return errors.Newf("cannot submit command buffer %d while %s", info.CommandBuffer, commandBuffer.State)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
	}
	if info.WaitSemaphore != 0 {
		semaphore, ok := vb.handles.semaphores.get(info.WaitSemaphore)
		if !ok {
			return errors.Newf("unknown semaphore %d", info.WaitSemaphore)
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{semaphore}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(info.WaitStage)}
	}
	if info.SignalSemaphore != 0 {
		semaphore, ok := vb.handles.semaphores.get(info.SignalSemaphore)
		if !ok {
			return errors.Newf("unknown semaphore %d", info.SignalSemaphore)
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{semaphore}
	}
	fence := vk.NullFence
	if info.Fence != 0 {
		f, ok := vb.handles.fences.get(info.Fence)
		if !ok {
			return errors.Newf("unknown fence %d", info.Fence)
		}
		fence = f
	}

	device := vb.context.Device
	err := vb.lockPool.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		return vulkanError(vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	commandBuffer.State = commandBufferStateSubmitted
	return nil
}

func (vb *VulkanBackend) WaitQueueIdle() error {
	device := vb.context.Device
	return vb.lockPool.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		return vulkanError(vk.QueueWaitIdle(device.GraphicsQueue), "vkQueueWaitIdle")
	})
}
