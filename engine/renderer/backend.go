package renderer

import "github.com/spaghettifunk/vkframe/engine/renderer/metadata"

/**
 * @brief Creates and destroys memory backed objects. Destroy/free calls
 * accept the null handle and do nothing with it.
 */
type Allocator interface {
	/** @brief The device's memory type table, in index order. */
	MemoryTypes() []metadata.MemoryType
	CreateBuffer(size uint64, usage metadata.BufferUsageFlags) (metadata.Buffer, metadata.MemoryRequirements, error)
	DestroyBuffer(buffer metadata.Buffer)
	CreateImage(info metadata.ImageInfo) (metadata.Image, metadata.MemoryRequirements, error)
	DestroyImage(image metadata.Image)
	AllocateMemory(size uint64, memoryTypeIndex uint32) (metadata.DeviceMemory, error)
	FreeMemory(memory metadata.DeviceMemory)
	BindBufferMemory(buffer metadata.Buffer, memory metadata.DeviceMemory) error
	BindImageMemory(image metadata.Image, memory metadata.DeviceMemory) error
	/** @brief Maps size bytes from the start of memory. The slice stays valid until UnmapMemory. */
	MapMemory(memory metadata.DeviceMemory, size uint64) ([]byte, error)
	UnmapMemory(memory metadata.DeviceMemory)
	CreateImageView(image metadata.Image, format metadata.Format, aspect metadata.ImageAspectFlags) (metadata.ImageView, error)
	DestroyImageView(view metadata.ImageView)
	CreateSampler() (metadata.Sampler, error)
	DestroySampler(sampler metadata.Sampler)
}

/** @brief Owns the surface side: capabilities, the swapchain and presentation. */
type Presenter interface {
	SurfaceCapabilities() (metadata.SurfaceCapabilities, error)
	SurfaceFormats() ([]metadata.SurfaceFormat, error)
	PresentModes() ([]metadata.PresentMode, error)
	/** @brief The graphics and present queue family indices. */
	QueueFamilies() (graphics, present uint32)
	/** @brief Reports whether format supports optimal tiling depth/stencil attachments. */
	SupportsDepthFormat(format metadata.Format) bool
	CreateSwapchain(info metadata.SwapchainInfo) (metadata.Swapchain, error)
	/** @brief The images owned by the swapchain. They are never destroyed by the caller. */
	SwapchainImages(swapchain metadata.Swapchain) ([]metadata.Image, error)
	DestroySwapchain(swapchain metadata.Swapchain)
	AcquireNextImage(swapchain metadata.Swapchain, timeout uint64, signal metadata.Semaphore) (uint32, metadata.SurfaceStatus, error)
	Present(info metadata.PresentInfo) (metadata.SurfaceStatus, error)
}

/** @brief Builds the fixed pipeline objects. */
type PipelineFactory interface {
	CreateRenderPass(info metadata.RenderPassInfo) (metadata.RenderPass, error)
	DestroyRenderPass(renderPass metadata.RenderPass)
	CreateFramebuffer(renderPass metadata.RenderPass, attachments []metadata.ImageView, extent metadata.Extent) (metadata.Framebuffer, error)
	DestroyFramebuffer(framebuffer metadata.Framebuffer)
	CreateShaderModule(code []byte) (metadata.ShaderModule, error)
	DestroyShaderModule(module metadata.ShaderModule)
	CreateDescriptorSetLayout(bindings []metadata.DescriptorBinding) (metadata.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout metadata.DescriptorSetLayout)
	CreatePipelineLayout(setLayout metadata.DescriptorSetLayout) (metadata.PipelineLayout, error)
	DestroyPipelineLayout(layout metadata.PipelineLayout)
	CreateGraphicsPipeline(info metadata.PipelineInfo) (metadata.Pipeline, error)
	DestroyPipeline(pipeline metadata.Pipeline)
	/** @brief Creates a pool able to hold maxSets sets of the given bindings. */
	CreateDescriptorPool(bindings []metadata.DescriptorBinding, maxSets uint32) (metadata.DescriptorPool, error)
	DestroyDescriptorPool(pool metadata.DescriptorPool)
	AllocateDescriptorSets(pool metadata.DescriptorPool, layout metadata.DescriptorSetLayout, count uint32) ([]metadata.DescriptorSet, error)
	UpdateDescriptorSet(set metadata.DescriptorSet, write metadata.DescriptorWrite)
}

/** @brief Fences, semaphores and device level waits. */
type Synchronizer interface {
	CreateFence(signaled bool) (metadata.Fence, error)
	DestroyFence(fence metadata.Fence)
	CreateSemaphore() (metadata.Semaphore, error)
	DestroySemaphore(semaphore metadata.Semaphore)
	WaitForFence(fence metadata.Fence, timeout uint64) error
	ResetFence(fence metadata.Fence) error
	/** @brief Blocks until the device has finished all submitted work. */
	WaitIdle() error
}

/** @brief Command buffer allocation and recording, from the graphics command pool. */
type Recorder interface {
	AllocateCommandBuffers(count uint32) ([]metadata.CommandBuffer, error)
	FreeCommandBuffers(buffers []metadata.CommandBuffer)
	ResetCommandBuffer(cb metadata.CommandBuffer) error
	BeginCommandBuffer(cb metadata.CommandBuffer, oneShot bool) error
	EndCommandBuffer(cb metadata.CommandBuffer) error
	CmdBeginRenderPass(cb metadata.CommandBuffer, renderPass metadata.RenderPass, framebuffer metadata.Framebuffer, extent metadata.Extent, clear metadata.ClearValues)
	CmdEndRenderPass(cb metadata.CommandBuffer)
	CmdBindPipeline(cb metadata.CommandBuffer, pipeline metadata.Pipeline)
	CmdSetViewport(cb metadata.CommandBuffer, extent metadata.Extent)
	CmdSetScissor(cb metadata.CommandBuffer, extent metadata.Extent)
	CmdBindVertexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer)
	CmdBindIndexBuffer(cb metadata.CommandBuffer, buffer metadata.Buffer)
	CmdBindDescriptorSet(cb metadata.CommandBuffer, layout metadata.PipelineLayout, set metadata.DescriptorSet)
	CmdDrawIndexed(cb metadata.CommandBuffer, indexCount uint32)
	CmdCopyBuffer(cb metadata.CommandBuffer, src, dst metadata.Buffer, size uint64)
	CmdCopyBufferToImage(cb metadata.CommandBuffer, src metadata.Buffer, dst metadata.Image, extent metadata.Extent)
	CmdImageBarrier(cb metadata.CommandBuffer, barrier metadata.ImageBarrier)
}

/** @brief Queue submission. */
type Submitter interface {
	Submit(info metadata.SubmitInfo) error
	/** @brief Blocks until the graphics queue is idle. */
	WaitQueueIdle() error
}

/**
 * @brief The narrow contract between the frame lifecycle and the graphics
 * API. The Vulkan backend implements it; tests use a recording fake.
 */
type Device interface {
	Allocator
	Presenter
	PipelineFactory
	Synchronizer
	Recorder
	Submitter
}
