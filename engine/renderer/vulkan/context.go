package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/metadata"
)

/**
 * @brief Everything that lives as long as the process: the instance, the
 * surface and the device. Nothing in here changes after Initialize.
 */
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	// Only set when validation is enabled.
	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice
}

/** @brief The Vulkan objects behind the handles given to the renderer. */
type handleTables struct {
	buffers         *registry[metadata.Buffer, vk.Buffer]
	memories        *registry[metadata.DeviceMemory, *vulkanMemory]
	images          *registry[metadata.Image, *vulkanImage]
	views           *registry[metadata.ImageView, vk.ImageView]
	samplers        *registry[metadata.Sampler, vk.Sampler]
	framebuffers    *registry[metadata.Framebuffer, vk.Framebuffer]
	renderPasses    *registry[metadata.RenderPass, vk.RenderPass]
	swapchains      *registry[metadata.Swapchain, *vulkanSwapchain]
	fences          *registry[metadata.Fence, vk.Fence]
	semaphores      *registry[metadata.Semaphore, vk.Semaphore]
	commandBuffers  *registry[metadata.CommandBuffer, *vulkanCommandBuffer]
	shaderModules   *registry[metadata.ShaderModule, vk.ShaderModule]
	setLayouts      *registry[metadata.DescriptorSetLayout, *vulkanSetLayout]
	descriptorPools *registry[metadata.DescriptorPool, vk.DescriptorPool]
	descriptorSets  *registry[metadata.DescriptorSet, vulkanDescriptorSet]
	pipelineLayouts *registry[metadata.PipelineLayout, vk.PipelineLayout]
	pipelines       *registry[metadata.Pipeline, vk.Pipeline]
}

func newHandleTables() *handleTables {
	return &handleTables{
		buffers:         newRegistry[metadata.Buffer, vk.Buffer](),
		memories:        newRegistry[metadata.DeviceMemory, *vulkanMemory](),
		images:          newRegistry[metadata.Image, *vulkanImage](),
		views:           newRegistry[metadata.ImageView, vk.ImageView](),
		samplers:        newRegistry[metadata.Sampler, vk.Sampler](),
		framebuffers:    newRegistry[metadata.Framebuffer, vk.Framebuffer](),
		renderPasses:    newRegistry[metadata.RenderPass, vk.RenderPass](),
		swapchains:      newRegistry[metadata.Swapchain, *vulkanSwapchain](),
		fences:          newRegistry[metadata.Fence, vk.Fence](),
		semaphores:      newRegistry[metadata.Semaphore, vk.Semaphore](),
		commandBuffers:  newRegistry[metadata.CommandBuffer, *vulkanCommandBuffer](),
		shaderModules:   newRegistry[metadata.ShaderModule, vk.ShaderModule](),
		setLayouts:      newRegistry[metadata.DescriptorSetLayout, *vulkanSetLayout](),
		descriptorPools: newRegistry[metadata.DescriptorPool, vk.DescriptorPool](),
		descriptorSets:  newRegistry[metadata.DescriptorSet, vulkanDescriptorSet](),
		pipelineLayouts: newRegistry[metadata.PipelineLayout, vk.PipelineLayout](),
		pipelines:       newRegistry[metadata.Pipeline, vk.Pipeline](),
	}
}

// live returns the number of objects still registered, swapchain images
// excluded.
func (t *handleTables) live() int {
	images := t.images.len()
	t.swapchains.each(func(_ metadata.Swapchain, sc *vulkanSwapchain) {
		images -= len(sc.images)
	})
	return t.buffers.len() + t.memories.len() + images + t.views.len() +
		t.samplers.len() + t.framebuffers.len() + t.renderPasses.len() +
		t.swapchains.len() + t.fences.len() + t.semaphores.len() +
		t.commandBuffers.len() + t.shaderModules.len() + t.setLayouts.len() +
		t.descriptorPools.len() + t.pipelineLayouts.len() + t.pipelines.len()
}
